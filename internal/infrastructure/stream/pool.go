package stream

import (
	"context"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkerCount is the pool size when the host supplies none.
const DefaultWorkerCount = 4

// TradeHandler receives every trade parsed out of the feed. A returned
// error is logged by the worker and never ends the worker loop.
type TradeHandler interface {
	ProcessTrade(ctx context.Context, trade *marketdata.Trade) error
}

// WorkerPool drains the hand-off queue with a fixed set of workers. Each
// worker parses the records of one frame in array order, so relative
// order is preserved only for events sharing a frame; cross-frame order
// across workers is unspecified.
type WorkerPool struct {
	queue   *Queue
	handler TradeHandler
	workers int
	logger  *logrus.Entry
}

// NewWorkerPool wires a pool of the given size over the queue. A
// non-positive size falls back to DefaultWorkerCount.
func NewWorkerPool(queue *Queue, handler TradeHandler, workers int, logger *logrus.Logger) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	return &WorkerPool{
		queue:   queue,
		handler: handler,
		workers: workers,
		logger:  logger.WithField("component", "worker_pool"),
	}
}

// Run starts the workers and blocks until the context is cancelled and
// every worker has returned. Frames already dequeued but not fully
// processed at cancellation are abandoned; no drain is attempted.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			p.work(gctx, id)
			return nil
		})
	}
	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	log := p.logger.WithField("worker", id)
	for {
		msg, ok := p.queue.Dequeue(ctx)
		if !ok {
			return
		}
		p.processFrame(ctx, log, msg)
	}
}

// processFrame parses one frame and dispatches its trade records. A bad
// record is skipped without affecting its siblings.
func (p *WorkerPool) processFrame(ctx context.Context, log *logrus.Entry, msg *marketdata.FeedMessage) {
	records, err := marketdata.SplitFrame(msg.Raw)
	if err != nil {
		log.WithError(err).Warn("discarding malformed frame")
		return
	}
	for _, record := range records {
		event, err := marketdata.ParseEvent(record)
		if err != nil {
			log.WithError(err).Warn("skipping malformed event record")
			continue
		}
		switch event.Type {
		case marketdata.EventTrade:
			if err := p.handler.ProcessTrade(ctx, event.Trade); err != nil {
				log.WithError(err).WithField("symbol", event.Trade.Symbol).Warn("trade processing failed")
			}
		case marketdata.EventControl:
			log.WithFields(logrus.Fields{
				"kind": event.Control.Kind,
				"msg":  event.Control.Message,
			}).Debug("control message")
		default:
			// quotes and bars are observed only for now
			log.WithField("type", string(event.Type)).Debug("ignoring non-trade event")
		}
	}
}
