package services

import (
	"context"
	"sync"
)

type fetchResponse struct {
	session *Session
	err     error
}

// fakeFetcher replays responses in order, repeating the last one. Every call is
// announced on calls before the response is produced.
type fakeFetcher struct {
	mu        sync.Mutex
	responses []fetchResponse
	count     int
	calls     chan int
	release   chan struct{}
}

func newFakeFetcher(responses ...fetchResponse) *fakeFetcher {
	return &fakeFetcher{responses: responses, calls: make(chan int, 64)}
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, token string) (*Session, error) {
	f.mu.Lock()
	f.count++
	n := f.count
	idx := n - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	resp := f.responses[idx]
	release := f.release
	f.mu.Unlock()

	f.calls <- n
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	return resp.session, resp.err
}

func (f *fakeFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeStopper struct {
	mu      sync.Mutex
	err     error
	count   int
	calls   chan struct{}
	release chan struct{}
}

func newFakeStopper(err error) *fakeStopper {
	return &fakeStopper{err: err, calls: make(chan struct{}, 8)}
}

func (s *fakeStopper) StopSession(ctx context.Context, token string) error {
	s.mu.Lock()
	s.count++
	release := s.release
	err := s.err
	s.mu.Unlock()

	s.calls <- struct{}{}
	if release != nil {
		<-release
	}
	return err
}

func (s *fakeStopper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type fakeProvider struct {
	mu            sync.Mutex
	confirm       *Authorization
	confirmErr    error
	retrieve      *Authorization
	retrieveErr   error
	confirmCalls  int
	retrieveCalls int
	lastReturnURL string
}

func (p *fakeProvider) ConfirmAuthorization(_ context.Context, _, _, returnURL string) (*Authorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmCalls++
	p.lastReturnURL = returnURL
	if p.confirmErr != nil {
		return nil, p.confirmErr
	}
	auth := *p.confirm
	return &auth, nil
}

func (p *fakeProvider) RetrieveAuthorization(_ context.Context, _ string) (*Authorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retrieveCalls++
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	auth := *p.retrieve
	return &auth, nil
}

func (p *fakeProvider) Calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmCalls, p.retrieveCalls
}

type memoryLedger struct {
	mu      sync.Mutex
	records []AuthorizationRecord
}

func (l *memoryLedger) Record(_ context.Context, rec AuthorizationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryLedger) Close() error { return nil }

func (l *memoryLedger) Records() []AuthorizationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuthorizationRecord(nil), l.records...)
}

func activeSession() *Session {
	return &Session{ID: "s-1", Status: StatusActive, Currency: "$", TotalEnergy: 3.2, TotalTime: 0.5}
}

func completedSession() *Session {
	return &Session{
		ID:                 "s-1",
		Status:             StatusCompleted,
		Currency:           "$",
		TotalEnergy:        12.34,
		TotalTime:          1.5,
		TotalCost:          &Price{InclVAT: 5.00},
		InvoiceReferenceID: "INV-7",
	}
}
