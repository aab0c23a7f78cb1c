package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/sethvargo/go-retry"
)

const sendTimeout = 30 * time.Second

type DispatcherConfig struct {
	QueueSize  int
	Workers    int
	MaxRetries uint64
	BaseDelay  time.Duration
}

// Dispatcher delivers queued messages on a fixed pool of workers. Enqueue
// never blocks; Close stops intake and waits for the queue to drain.
type Dispatcher struct {
	cfg       DispatcherConfig
	sender    Sender
	log       logging.Logger
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex // held for reading while a send is in flight
	closed    bool
	closeOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig, sender Sender, log logging.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		log:    log.With("module", "mail"),
		ch:     make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.run()
	}
	return d
}

// Enqueue accepts msg for delivery. A full or closed queue yields
// common.ErrEmailDeliveryFailed.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return errors.Join(common.ErrEmailDeliveryFailed, err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return common.ErrEmailDeliveryFailed
	}
	select {
	case d.ch <- msg:
		return nil
	default:
		d.log.Warn(ctx, "mail queue full", "to", msg.To, "tag", msg.Tag)
		return common.ErrEmailDeliveryFailed
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.BaseDelay))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := d.sender.Send(ctx, msg); err != nil {
			if errors.Is(err, ErrInvalidMessage) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.log.Error(ctx, "mail delivery failed", "to", msg.To, "tag", msg.Tag, "attempts", attempts, "error", err)
		return
	}
	d.log.Debug(ctx, "mail delivered", "to", msg.To, "tag", msg.Tag, "attempts", attempts)
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}
