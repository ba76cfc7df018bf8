package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"guestcharge/utils"
)

// ErrTokenMismatch is returned when a view id is reused with another session token.
var ErrTokenMismatch = errors.New("session view belongs to another token")

// ViewRegistry tracks the session views of open pages by view id.
type ViewRegistry struct {
	deps ViewDeps

	mu    sync.Mutex
	views map[string]*SessionView
}

// NewViewRegistry creates an empty registry. Every view it creates uses deps.
func NewViewRegistry(deps ViewDeps) *ViewRegistry {
	return &ViewRegistry{
		deps:  deps,
		views: make(map[string]*SessionView),
	}
}

// Attach subscribes to the view with the given id, creating and activating it when
// no live view exists. The returned func unsubscribes; the view closes when its
// last subscriber leaves.
func (r *ViewRegistry) Attach(id, token string) (*SessionView, <-chan ViewState, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.views[id]; ok {
		if v.Token() != token {
			return nil, nil, nil, ErrTokenMismatch
		}
		ch, unsubscribe, err := v.Subscribe()
		if err == nil {
			return v, ch, unsubscribe, nil
		}
		// Closed but not yet removed.
		delete(r.views, id)
	}

	v := NewSessionView(id, token, r.deps)
	v.onClose = r.remove
	ch, unsubscribe, err := v.Subscribe()
	if err != nil {
		return nil, nil, nil, err
	}
	r.views[id] = v
	v.Activate()
	utils.Debug("session", "Session view attached", "view_id", id, "views", len(r.views))
	return v, ch, unsubscribe, nil
}

// Get retrieves a live view by id.
func (r *ViewRegistry) Get(id string) (*SessionView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

// Transient creates a view that is neither registered nor polling. It serves
// actions posted for a page whose live stream is gone.
func (r *ViewRegistry) Transient(id, token string) *SessionView {
	return NewSessionView(id, token, r.deps)
}

// Count returns the number of live views.
func (r *ViewRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// CloseAll closes every view.
func (r *ViewRegistry) CloseAll() {
	r.mu.Lock()
	views := make([]*SessionView, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (r *ViewRegistry) remove(v *SessionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.views[v.ID] == v {
		delete(r.views, v.ID)
	}
}

// PaymentFormRegistry keeps payment forms between the page render and the submit.
type PaymentFormRegistry struct {
	ttl   time.Duration
	clock clock.PassiveClock

	mutex sync.RWMutex
	forms map[string]*PaymentForm
}

// NewPaymentFormRegistry creates a registry whose forms expire after ttl.
func NewPaymentFormRegistry(ttl time.Duration, clk clock.PassiveClock) *PaymentFormRegistry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &PaymentFormRegistry{
		ttl:   ttl,
		clock: clk,
		forms: make(map[string]*PaymentForm),
	}
}

// Add registers a form. Its expiry runs from the registry clock's now.
func (r *PaymentFormRegistry) Add(form *PaymentForm) {
	form.stamp(r.clock.Now())
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.forms[form.ID] = form
}

// Get retrieves an unexpired form by id.
func (r *PaymentFormRegistry) Get(id string) (*PaymentForm, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	form, ok := r.forms[id]
	if !ok || r.expired(form) {
		return nil, false
	}
	return form, true
}

// Remove removes a form by id.
func (r *PaymentFormRegistry) Remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.forms, id)
}

// CleanupExpired removes all expired forms and returns how many were removed.
func (r *PaymentFormRegistry) CleanupExpired() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for id, form := range r.forms {
		if r.expired(form) {
			delete(r.forms, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of registered forms.
func (r *PaymentFormRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.forms)
}

func (r *PaymentFormRegistry) expired(form *PaymentForm) bool {
	return r.clock.Since(form.CreatedAt()) > r.ttl
}

// RunCleanup removes expired forms every interval until ctx is done.
func RunCleanup(ctx context.Context, clk clock.WithTicker, interval time.Duration, cleanups ...func() int) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			for _, cleanup := range cleanups {
				if n := cleanup(); n > 0 {
					utils.Debug("cleanup", "Removed expired entries", "count", n)
				}
			}
		}
	}
}
