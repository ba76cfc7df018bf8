package services

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"guestcharge/utils"
)

// Poller fetches a session snapshot on a fixed cadence until the session completes
// or polling is disabled. Fetches run one at a time on the poll goroutine, so
// results are delivered in the order the fetches were started.
type Poller struct {
	fetcher  StatusFetcher
	token    string
	interval time.Duration
	clock    clock.WithTicker
	onResult func(*Session, error)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	running    bool
}

// NewPoller creates a poller. onResult is called from the poll goroutine for every
// fetch that completes while the poller is still current.
func NewPoller(fetcher StatusFetcher, token string, interval time.Duration, clk clock.WithTicker, onResult func(*Session, error)) *Poller {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Poller{
		fetcher:  fetcher,
		token:    token,
		interval: interval,
		clock:    clk,
		onResult: onResult,
	}
}

// Start begins polling. With immediate set the first fetch is issued right away,
// otherwise the first fetch waits a full interval. A running loop is replaced.
func (p *Poller) Start(parent context.Context, immediate bool) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.running = true
	// Created before returning so the first tick is scheduled relative to Start.
	ticker := p.clock.NewTicker(p.interval)
	p.mu.Unlock()

	go p.loop(ctx, gen, ticker, immediate)
}

// Disable cancels polling. A fetch already in flight is abandoned and its result
// discarded. Disable does not wait for the poll goroutine to exit.
func (p *Poller) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.running = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Running reports whether a poll loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, gen uint64, ticker clock.Ticker, immediate bool) {
	defer ticker.Stop()
	defer p.finish(gen)

	if immediate && p.fetch(ctx, gen) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if p.fetch(ctx, gen) {
				return
			}
		}
	}
}

// fetch performs one fetch and reports whether the loop should end.
func (p *Poller) fetch(ctx context.Context, gen uint64) bool {
	if !p.current(ctx, gen) {
		return true
	}

	session, err := p.fetcher.FetchStatus(ctx, p.token)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation || ctx.Err() != nil {
		utils.Debug("poller", "Discarding result of cancelled fetch")
		return true
	}
	if err != nil {
		utils.Warn("poller", "Session status fetch failed", "error", err)
	}
	p.onResult(session, err)

	if err == nil && session.IsCompleted() {
		utils.Info("poller", "Session completed, polling stopped", "session_id", session.ID)
		return true
	}
	return false
}

func (p *Poller) current(ctx context.Context, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation && ctx.Err() == nil
}

func (p *Poller) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.generation {
		p.running = false
	}
}
