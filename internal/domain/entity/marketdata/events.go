package marketdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType discriminates the records carried inside one feed frame.
type EventType string

const (
	EventTrade   EventType = "t"
	EventQuote   EventType = "q"
	EventBar     EventType = "b"
	EventControl EventType = "control"
)

var ErrNotArrayFrame = errors.New("feed frame is not a JSON array")

// FeedMessage is one network frame as received from the upstream feed.
// The pipeline transports frames whole: one queue slot corresponds to one
// frame, which may carry zero or more typed event records.
type FeedMessage struct {
	Raw        []byte
	ReceivedAt time.Time
}

// Event is a tagged union over the record kinds a frame may carry. Exactly
// one of the payload pointers matching Type is set.
type Event struct {
	Type    EventType
	Trade   *Trade
	Quote   *Quote
	Bar     *Bar
	Control *ControlMessage
}

// ControlMessage covers non-market records ("success", "error",
// "subscription" acknowledgements).
type ControlMessage struct {
	Kind    string `json:"T"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"msg,omitempty"`
}

// SplitFrame decodes one frame into its constituent raw records. Anything
// other than a JSON array is a frame-level parse error.
func SplitFrame(frame []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(frame, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArrayFrame, err)
	}
	return records, nil
}

// Wire shapes follow the feed's single-letter schema. The "c" key is
// overloaded upstream: trade conditions on trades, close price on bars,
// hence one struct per record kind.

type wireTrade struct {
	ID         int64     `json:"i"`
	Symbol     string    `json:"S"`
	Exchange   string    `json:"x"`
	Price      float64   `json:"p"`
	Size       float64   `json:"s"`
	Conditions []string  `json:"c"`
	Tape       string    `json:"z"`
	Timestamp  time.Time `json:"t"`
}

type wireQuote struct {
	Symbol      string    `json:"S"`
	BidExchange string    `json:"bx"`
	BidPrice    float64   `json:"bp"`
	BidSize     float64   `json:"bs"`
	AskExchange string    `json:"ax"`
	AskPrice    float64   `json:"ap"`
	AskSize     float64   `json:"as"`
	Conditions  []string  `json:"c"`
	Tape        string    `json:"z"`
	Timestamp   time.Time `json:"t"`
}

type wireBar struct {
	Symbol    string    `json:"S"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	Timestamp time.Time `json:"t"`
}

// ParseEvent decodes one raw record into a typed event. Unknown
// discriminators come back as control events so callers can observe them
// without special-casing.
func ParseEvent(raw json.RawMessage) (Event, error) {
	var header struct {
		Type EventType `json:"T"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return Event{}, fmt.Errorf("decode event record: %w", err)
	}

	switch header.Type {
	case EventTrade:
		var rec wireTrade
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Event{}, fmt.Errorf("decode trade record: %w", err)
		}
		if rec.Symbol == "" {
			return Event{}, errors.New("trade record missing symbol")
		}
		return Event{Type: EventTrade, Trade: &Trade{
			ID:         rec.ID,
			Symbol:     rec.Symbol,
			Exchange:   rec.Exchange,
			Price:      rec.Price,
			Size:       rec.Size,
			Conditions: rec.Conditions,
			Tape:       rec.Tape,
			Timestamp:  rec.Timestamp.UTC(),
		}}, nil
	case EventQuote:
		var rec wireQuote
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Event{}, fmt.Errorf("decode quote record: %w", err)
		}
		if rec.Symbol == "" {
			return Event{}, errors.New("quote record missing symbol")
		}
		return Event{Type: EventQuote, Quote: &Quote{
			Symbol:      rec.Symbol,
			BidExchange: rec.BidExchange,
			BidPrice:    rec.BidPrice,
			BidSize:     rec.BidSize,
			AskExchange: rec.AskExchange,
			AskPrice:    rec.AskPrice,
			AskSize:     rec.AskSize,
			Conditions:  rec.Conditions,
			Tape:        rec.Tape,
			Timestamp:   rec.Timestamp.UTC(),
		}}, nil
	case EventBar:
		var rec wireBar
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Event{}, fmt.Errorf("decode bar record: %w", err)
		}
		if rec.Symbol == "" {
			return Event{}, errors.New("bar record missing symbol")
		}
		return Event{Type: EventBar, Bar: &Bar{
			Symbol:      rec.Symbol,
			Open:        rec.Open,
			High:        rec.High,
			Low:         rec.Low,
			Close:       rec.Close,
			Volume:      rec.Volume,
			WindowStart: rec.Timestamp.UTC(),
		}}, nil
	default:
		var rec ControlMessage
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Event{}, fmt.Errorf("decode control record: %w", err)
		}
		return Event{Type: EventControl, Control: &rec}, nil
	}
}
