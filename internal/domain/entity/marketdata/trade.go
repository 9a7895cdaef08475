package marketdata

import "time"

// Trade models a single executed trade delivered on the upstream stream.
// Immutable once parsed.
type Trade struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	Conditions []string  `json:"conditions,omitempty"`
	Tape       string    `json:"tape,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Quote is a top-of-book bid/ask update.
type Quote struct {
	Symbol      string    `json:"symbol"`
	BidExchange string    `json:"bid_exchange"`
	BidPrice    float64   `json:"bid_price"`
	BidSize     float64   `json:"bid_size"`
	AskExchange string    `json:"ask_exchange"`
	AskPrice    float64   `json:"ask_price"`
	AskSize     float64   `json:"ask_size"`
	Conditions  []string  `json:"conditions,omitempty"`
	Tape        string    `json:"tape,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
