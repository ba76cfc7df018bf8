package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"guestcharge/metrics"
	"guestcharge/utils"
)

// Phase is the single state of a session page. One value replaces the separate
// loading/error/polling/modal flags so impossible combinations cannot occur.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseLive       Phase = "live"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
	PhaseFinalizing Phase = "finalizing"
	PhaseSummary    Phase = "summary"
)

var (
	ErrStopInProgress = errors.New("a stop request is already in progress")
	ErrAlreadyStopped = errors.New("session is already stopped")
	ErrViewClosed     = errors.New("session view is closed")
)

// ViewState is what a session page renders.
type ViewState struct {
	Phase   Phase
	Session *Session
	// FetchErr is the most recent status fetch failure, cleared by the next success.
	FetchErr error
}

// ViewDeps are the collaborators of a session view.
type ViewDeps struct {
	Fetcher       StatusFetcher
	Stopper       SessionStopper
	Clock         clock.WithTicker
	PollInterval  time.Duration
	FinalizeDwell time.Duration
}

// SessionView owns the poller and the rendered state of one open session page.
type SessionView struct {
	ID    string
	token string

	fetcher StatusFetcher
	stopper SessionStopper
	clock   clock.WithTicker
	dwell   time.Duration
	poller  *Poller

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     ViewState
	stopping  bool
	activated bool
	closed    bool
	subs      map[int]chan ViewState
	nextSub   int
	onClose   func(*SessionView)
}

// NewSessionView creates a view in the loading phase. Polling starts on Activate.
func NewSessionView(id, token string, deps ViewDeps) *SessionView {
	clk := deps.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &SessionView{
		ID:      id,
		token:   token,
		fetcher: deps.Fetcher,
		stopper: deps.Stopper,
		clock:   clk,
		dwell:   deps.FinalizeDwell,
		ctx:     ctx,
		cancel:  cancel,
		state:   ViewState{Phase: PhaseLoading},
		subs:    make(map[int]chan ViewState),
	}
	v.poller = NewPoller(deps.Fetcher, token, deps.PollInterval, clk, v.onPoll)
	return v
}

// Token returns the session access token the view polls with.
func (v *SessionView) Token() string {
	return v.token
}

// Activate starts polling with an immediate first fetch. Later calls are ignored.
func (v *SessionView) Activate() {
	v.mu.Lock()
	if v.activated || v.closed {
		v.mu.Unlock()
		return
	}
	v.activated = true
	v.mu.Unlock()

	metrics.ActiveViews.Inc()
	v.poller.Start(v.ctx, true)
}

// Polling reports whether the view's poll loop is active.
func (v *SessionView) Polling() bool {
	return v.poller.Running()
}

// Snapshot returns the current state.
func (v *SessionView) Snapshot() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Subscribe registers a listener for state changes. The current state is delivered
// first. Slow listeners only ever see the latest state. Dropping the last
// subscription closes the view.
func (v *SessionView) Subscribe() (<-chan ViewState, func(), error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, nil, ErrViewClosed
	}

	id := v.nextSub
	v.nextSub++
	ch := make(chan ViewState, 1)
	ch <- v.state
	v.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			last := len(v.subs) == 0
			v.mu.Unlock()
			if last {
				v.Close()
			}
		})
	}
	return ch, unsubscribe, nil
}

// Close tears the view down: polling stops and subscribers are released.
func (v *SessionView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		close(ch)
		delete(v.subs, id)
	}
	activated := v.activated
	onClose := v.onClose
	v.mu.Unlock()

	v.cancel()
	v.poller.Disable()
	if activated {
		metrics.ActiveViews.Dec()
	}
	if onClose != nil {
		onClose(v)
	}
	utils.Debug("session", "Session view closed", "view_id", v.ID)
}

// Stop runs the stop sequence: disable polling, stop the session, fetch the final
// snapshot, hold the finalizing phase for the dwell time counted from the stop
// call's resolution, then show the summary. When the stop call fails the previous
// state is restored, polling resumes on its normal cadence and the error is returned.
func (v *SessionView) Stop(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.stopping {
		v.mu.Unlock()
		return ErrStopInProgress
	}
	if v.state.Phase == PhaseSummary || v.state.Session.IsCompleted() {
		v.mu.Unlock()
		return ErrAlreadyStopped
	}
	v.stopping = true
	previous := v.state
	wasActivated := v.activated
	v.state.Phase = PhaseFinalizing
	v.publishLocked()
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.stopping = false
		v.mu.Unlock()
	}()

	v.poller.Disable()

	if err := v.stopper.StopSession(ctx, v.token); err != nil {
		utils.Error("session", "Stop charging failed", "view_id", v.ID, "error", err)
		metrics.StopRequests.WithLabelValues(metrics.OutcomeError).Inc()
		v.mu.Lock()
		v.state = previous
		v.publishLocked()
		v.mu.Unlock()
		if wasActivated && v.ctx.Err() == nil {
			v.poller.Start(v.ctx, false)
		}
		return err
	}
	metrics.StopRequests.WithLabelValues(metrics.OutcomeOK).Inc()

	dwell := v.clock.After(v.dwell)

	session, err := v.fetcher.FetchStatus(ctx, v.token)
	v.mu.Lock()
	if err != nil {
		utils.Warn("session", "Final status fetch failed", "view_id", v.ID, "error", err)
		v.state.FetchErr = err
	} else {
		v.state.Session = session
		v.state.FetchErr = nil
	}
	v.publishLocked()
	v.mu.Unlock()

	// The stop already succeeded. A view closed mid-dwell has nobody left to
	// show the overlay to, so it goes straight to the summary.
	select {
	case <-dwell:
	case <-v.ctx.Done():
	}

	v.mu.Lock()
	v.state.Phase = PhaseSummary
	v.publishLocked()
	v.mu.Unlock()

	utils.Info("session", "Charging session stopped", "view_id", v.ID)
	return nil
}

func (v *SessionView) onPoll(session *Session, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state.Phase {
	case PhaseFinalizing, PhaseSummary:
		return
	}

	if err != nil {
		v.state.FetchErr = err
		if v.state.Session == nil {
			v.state.Phase = PhaseError
		}
	} else {
		v.state.Session = session
		v.state.FetchErr = nil
		if session.IsCompleted() {
			v.state.Phase = PhaseCompleted
		} else {
			v.state.Phase = PhaseLive
		}
	}
	v.publishLocked()
}

func (v *SessionView) publishLocked() {
	if v.closed {
		return
	}
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v.state:
		default:
		}
	}
}
