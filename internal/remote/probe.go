package remote

import (
	"context"
	"sync"
	"time"
)

// Pinger is the reachability check the probe polls; *Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe is a polling service.Connectivity implementation. It pings the
// remote endpoint on an interval and fans out transitions to subscribers.
type Probe struct {
	pinger      Pinger
	stop        chan struct{}
	subscribers map[int]func(online bool)
	nextSubID   int
	interval    time.Duration
	mu          sync.Mutex
	online      bool
	started     bool
}

// NewProbe creates a probe polling at the given interval (default 15s).
// The initial state is determined by a synchronous first ping on Start.
func NewProbe(pinger Pinger, interval time.Duration) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Probe{
		pinger:      pinger,
		interval:    interval,
		subscribers: make(map[int]func(online bool)),
		stop:        make(chan struct{}),
	}
}

// Start begins polling. Safe to call once; Stop ends the poll loop.
func (p *Probe) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.check(ctx)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.check(ctx)
			}
		}
	}()
}

// Stop ends the poll loop.
func (p *Probe) Stop() {
	close(p.stop)
}

// Online reports the last observed reachability.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe registers a transition callback and returns an unsubscribe func.
func (p *Probe) Subscribe(fn func(online bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *Probe) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	online := p.pinger.Ping(pingCtx) == nil

	p.mu.Lock()
	changed := online != p.online
	p.online = online
	var fns []func(online bool)
	if changed {
		for _, fn := range p.subscribers {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}
