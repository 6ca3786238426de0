// Package poll refreshes a view on an interval while it is visible.
package poll

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Interval time.Duration
	// Jitter adds up to this much random delay to every wait so many clients
	// do not hit the server in lockstep.
	Jitter time.Duration
	// Immediate runs fn once as soon as the poller is visible.
	Immediate bool
}

// Poller calls fn every Interval (+ jitter) while visible. Hidden pollers
// wait without calling fn; Run returns when ctx is cancelled.
type Poller struct {
	cfg  Config
	fn   func(ctx context.Context) error
	log  logrus.FieldLogger
	rand func(n int64) int64

	mu      sync.Mutex
	visible bool
	wake    chan struct{}
}

func New(cfg Config, fn func(ctx context.Context) error, log logrus.FieldLogger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		cfg:     cfg,
		fn:      fn,
		log:     log,
		rand:    rand.Int63n,
		visible: true,
		wake:    make(chan struct{}),
	}
}

// SetVisible pauses (false) or resumes (true) polling.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visible == visible {
		return
	}
	p.visible = visible
	close(p.wake)
	p.wake = make(chan struct{})
}

func (p *Poller) state() (bool, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible, p.wake
}

func (p *Poller) Run(ctx context.Context) error {
	first := p.cfg.Immediate
	for {
		visible, wake := p.state()
		if !visible {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wake:
				first = p.cfg.Immediate
				continue
			}
		}

		if !first {
			timer := time.NewTimer(p.delay())
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-wake:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}
		first = false

		if err := p.fn(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("poll failed")
		}
	}
}

func (p *Poller) delay() time.Duration {
	if p.cfg.Jitter <= 0 {
		return p.cfg.Interval
	}
	return p.cfg.Interval + time.Duration(p.rand(int64(p.cfg.Jitter)+1))
}
