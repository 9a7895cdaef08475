package marketdata

import "time"

// Bar represents an OHLCV aggregate for a fixed interval.
type Bar struct {
	Symbol      string    `json:"symbol"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	WindowStart time.Time `json:"window_start"`
}
