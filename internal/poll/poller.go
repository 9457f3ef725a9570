// Package poll runs the fixed-interval status loop for one activation:
// started when an order is watched, stopped on a terminal status, on
// explicit stop, or when the watcher goes away.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/welovename555/hero-sms-dashboard/internal/herosms"
)

// Source reads the provider-owned status of an activation.
type Source interface {
	GetStatus(ctx context.Context, key, id string) (herosms.StatusSnapshot, error)
}

// Poller starts status subscriptions. Interval bounds are configuration;
// requested intervals are clamped into [MinInterval, MaxInterval].
type Poller struct {
	Source          Source
	DefaultInterval time.Duration
	MinInterval     time.Duration
	MaxInterval     time.Duration
	Logger          *zap.Logger
}

// Subscription is the handle for one running poll loop. Updates is closed
// when the loop ends; Stop is idempotent.
type Subscription struct {
	updates  chan herosms.StatusSnapshot
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *Subscription) Updates() <-chan herosms.StatusSnapshot {
	return s.updates
}

func (s *Subscription) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (p *Poller) clamp(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = p.DefaultInterval
	}
	if p.MinInterval > 0 && interval < p.MinInterval {
		interval = p.MinInterval
	}
	if p.MaxInterval > 0 && interval > p.MaxInterval {
		interval = p.MaxInterval
	}
	return interval
}

// Watch polls the activation until it reaches a terminal status, the
// subscription is stopped, or ctx is cancelled. The first poll happens
// immediately, the rest on the clamped interval.
func (p *Poller) Watch(ctx context.Context, key, id string, interval time.Duration) *Subscription {
	sub := &Subscription{
		updates: make(chan herosms.StatusSnapshot, 1),
		stop:    make(chan struct{}),
	}
	go p.run(ctx, key, id, p.clamp(interval), sub)
	return sub
}

func (p *Poller) run(ctx context.Context, key, id string, interval time.Duration, sub *Subscription) {
	defer close(sub.updates)

	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := p.Source.GetStatus(ctx, key, id)
		switch {
		case errors.Is(err, herosms.ErrOrderNotFound):
			// The provider no longer knows the activation; nothing left
			// to poll.
			log.Info("activation gone, stopping poll", zap.String("activation", id))
			return
		case err != nil:
			// Transient poll failures are swallowed so a network blip does
			// not tear down the watch; the stream just skips a beat.
			log.Debug("status poll failed", zap.String("activation", id), zap.Error(err))
		default:
			select {
			case sub.updates <- snap:
			case <-sub.stop:
				return
			case <-ctx.Done():
				return
			}
			if snap.Status.Terminal() {
				sub.Stop()
				return
			}
		}

		select {
		case <-ticker.C:
		case <-sub.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
