package queue

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/notify"
)

const deliverTimeout = 5 * time.Second

type deliverer interface {
	Deliver(ctx context.Context, in notify.Intent) error
}

// LocalDispatcher delivers notifications in-process on a background
// worker.  It is used when RabbitMQ is disabled.
type LocalDispatcher struct {
	pending chan []notify.Intent
	d       deliverer
	log     *logrus.Entry
}

// NewLocalDispatcher buffers up to buffer batches; further batches are
// dropped until the worker catches up.
func NewLocalDispatcher(d *Deliverer, buffer int) *LocalDispatcher {
	return newLocalDispatcher(d, buffer)
}

func newLocalDispatcher(d deliverer, buffer int) *LocalDispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &LocalDispatcher{
		pending: make(chan []notify.Intent, buffer),
		d:       d,
		log:     logrus.WithField("component", "notifications.local"),
	}
}

// Dispatch implements notify.Dispatcher.
func (l *LocalDispatcher) Dispatch(ctx context.Context, intents []notify.Intent) {
	if len(intents) == 0 {
		return
	}
	select {
	case l.pending <- intents:
	default:
		l.log.WithField("count", len(intents)).Warn("notification buffer full, dropping batch")
	}
}

// Run delivers queued batches until ctx is cancelled, then flushes what is
// already buffered.
func (l *LocalDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.flush()
			return
		case batch := <-l.pending:
			l.deliver(ctx, batch)
		}
	}
}

func (l *LocalDispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	for {
		select {
		case batch := <-l.pending:
			l.deliver(ctx, batch)
		default:
			return
		}
	}
}

func (l *LocalDispatcher) deliver(ctx context.Context, batch []notify.Intent) {
	for _, in := range batch {
		dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := l.d.Deliver(dctx, in)
		cancel()
		if err != nil {
			l.log.WithError(err).WithField("user_id", in.RecipientID).Error("notification delivery failed")
		}
	}
}
