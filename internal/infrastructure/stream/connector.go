package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ConnectorState tracks where the connector is in its connect cycle.
type ConnectorState int32

const (
	StateDisconnected ConnectorState = iota
	StateConnecting
	StateAuthenticated
	StateSubscribed
	StateStreaming
	StateStopped
)

func (s ConnectorState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// FeedConfig describes the upstream feed connection. Trade, quote, and bar
// channels are independently optional.
type FeedConfig struct {
	URL          string
	Key          string
	Secret       string
	TradeSymbols []string
	QuoteSymbols []string
	BarSymbols   []string
}

// feedConn is the slice of a websocket connection the connector uses; the
// gorilla *websocket.Conn satisfies it.
type feedConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connector owns the upstream feed connection: it authenticates,
// subscribes to the configured channels, and offers every inbound frame
// to the hand-off queue without ever blocking on it. Transport errors end
// the cycle and trigger a reconnect with capped exponential backoff.
type Connector struct {
	cfg    FeedConfig
	queue  *Queue
	logger *logrus.Entry
	state  atomic.Int32

	dial func(ctx context.Context, url string) (feedConn, error)
	now  func() time.Time
}

// NewConnector builds a connector feeding the given queue.
func NewConnector(cfg FeedConfig, queue *Queue, logger *logrus.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		queue:  queue,
		logger: logger.WithField("component", "feed_connector"),
		dial: func(ctx context.Context, url string) (feedConn, error) {
			dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
			conn, _, err := dialer.DialContext(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		now: time.Now,
	}
}

// State returns the current connect-cycle state.
func (c *Connector) State() ConnectorState {
	return ConnectorState(c.state.Load())
}

func (c *Connector) setState(s ConnectorState) {
	c.state.Store(int32(s))
}

// Run drives connect cycles until the context is cancelled. Every
// transport failure is logged, the state drops to disconnected, and the
// next attempt waits one backoff step; a cycle that stayed up past the
// backoff cap resets the schedule.
func (c *Connector) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateStopped)
			c.logger.Info("feed connector stopped")
			return nil
		}

		start := c.now()
		err := c.runCycle(ctx)
		c.setState(StateDisconnected)
		if err == nil {
			// orderly shutdown ends the cycle without an error
			continue
		}

		if c.now().Sub(start) > maxBackoff {
			backoff = initialBackoff
		}
		c.logger.WithError(err).WithField("retry_in", backoff.String()).Warn("feed connection cycle ended")

		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runCycle performs one connect/auth/subscribe/receive pass. A nil return
// means the context ended the cycle; any error is a transport failure.
func (c *Connector) runCycle(ctx context.Context) error {
	c.setState(StateConnecting)
	conn, err := c.dial(ctx, c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	// unblock the blocking read when the context ends
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-cycleCtx.Done()
		conn.Close()
	}()

	if err := c.authenticate(conn); err != nil {
		return err
	}
	c.setState(StateAuthenticated)

	if err := c.subscribe(conn); err != nil {
		return err
	}
	c.setState(StateSubscribed)
	c.setState(StateStreaming)
	c.logger.WithFields(logrus.Fields{
		"trades": len(c.cfg.TradeSymbols),
		"quotes": len(c.cfg.QuoteSymbols),
		"bars":   len(c.cfg.BarSymbols),
	}).Info("feed subscribed, streaming")

	return c.receive(ctx, conn)
}

func (c *Connector) authenticate(conn feedConn) error {
	frame, err := json.Marshal(map[string]string{
		"action": "auth",
		"key":    c.cfg.Key,
		"secret": c.cfg.Secret,
	})
	if err != nil {
		return fmt.Errorf("marshal auth frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}
	return nil
}

func (c *Connector) subscribe(conn feedConn) error {
	sub := map[string]any{"action": "subscribe"}
	if len(c.cfg.TradeSymbols) > 0 {
		sub["trades"] = c.cfg.TradeSymbols
	}
	if len(c.cfg.QuoteSymbols) > 0 {
		sub["quotes"] = c.cfg.QuoteSymbols
	}
	if len(c.cfg.BarSymbols) > 0 {
		sub["bars"] = c.cfg.BarSymbols
	}
	frame, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send subscribe frame: %w", err)
	}
	return nil
}

// receive forwards inbound frames to the queue until the connection or
// the context ends. Enqueue is strictly non-blocking: a full queue drops
// the frame with a warning, keeping the read loop live.
func (c *Connector) receive(ctx context.Context, conn feedConn) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("read feed frame: %w", err)
		}

		msg := &marketdata.FeedMessage{Raw: frame, ReceivedAt: c.now().UTC()}
		if !c.queue.TryEnqueue(msg) {
			c.logger.WithField("drops", c.queue.Drops()).Warn("hand-off queue full, frame dropped")
		}
	}
}
