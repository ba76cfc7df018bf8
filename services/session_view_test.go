package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

const finalizeDwell = 2 * time.Second

func newTestView(t *testing.T, fetcher *fakeFetcher, stopper *fakeStopper) (*SessionView, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Now())
	v := NewSessionView("view-1", "tok", ViewDeps{
		Fetcher:       fetcher,
		Stopper:       stopper,
		Clock:         clk,
		PollInterval:  pollInterval,
		FinalizeDwell: finalizeDwell,
	})
	t.Cleanup(v.Close)
	return v, clk
}

func waitPhase(t *testing.T, v *SessionView, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return v.Snapshot().Phase == phase }, 2*time.Second, 5*time.Millisecond,
		"phase %s never reached, at %s", phase, v.Snapshot().Phase)
}

func runStop(v *SessionView) <-chan error {
	done := make(chan error, 1)
	go func() { done <- v.Stop(context.Background()) }()
	return done
}

func TestSessionViewLoadsThenGoesLive(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	v, _ := newTestView(t, fetcher, newFakeStopper(nil))

	ch, unsubscribe, err := v.Subscribe()
	require.NoError(t, err)
	defer unsubscribe()

	first := <-ch
	assert.Equal(t, PhaseLoading, first.Phase)

	v.Activate()
	waitCall(t, fetcher, 1)

	select {
	case st := <-ch:
		assert.Equal(t, PhaseLive, st.Phase)
		assert.Equal(t, "s-1", st.Session.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update after first fetch")
	}
	assert.True(t, v.Polling())
}

func TestSessionViewFetchErrorKeepsSnapshot(t *testing.T) {
	fetcher := newFakeFetcher(
		fetchResponse{session: activeSession()},
		fetchResponse{err: newError(KindTransport, "Failed to fetch charging session status", nil)},
	)
	v, clk := newTestView(t, fetcher, newFakeStopper(nil))

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseLive)

	clk.Step(pollInterval)
	waitCall(t, fetcher, 2)
	require.Eventually(t, func() bool { return v.Snapshot().FetchErr != nil }, time.Second, 5*time.Millisecond)

	st := v.Snapshot()
	assert.Equal(t, PhaseLive, st.Phase)
	require.NotNil(t, st.Session)
	assert.True(t, v.Polling())
}

func TestSessionViewErrorWithoutSnapshot(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{err: newError(KindTransport, "Failed to load session status", nil)})
	v, _ := newTestView(t, fetcher, newFakeStopper(nil))

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseError)
	assert.Nil(t, v.Snapshot().Session)
}

func TestSessionViewCompletedStopsPolling(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: completedSession()})
	v, clk := newTestView(t, fetcher, newFakeStopper(nil))

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseCompleted)
	require.Eventually(t, func() bool { return !v.Polling() }, time.Second, 5*time.Millisecond)

	clk.Step(pollInterval)
	assertNoCall(t, fetcher)

	assert.ErrorIs(t, v.Stop(context.Background()), ErrAlreadyStopped)
}

func TestStopHoldsFinalizingForDwell(t *testing.T) {
	fetcher := newFakeFetcher(
		fetchResponse{session: activeSession()},
		fetchResponse{session: completedSession()},
	)
	stopper := newFakeStopper(nil)
	v, clk := newTestView(t, fetcher, stopper)

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseLive)

	done := runStop(v)

	// Follow-up fetch returns instantly; the dwell timer is already armed.
	waitCall(t, fetcher, 2)
	assert.Equal(t, 1, stopper.Count())
	require.Eventually(t, func() bool { return v.Snapshot().Session.IsCompleted() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseFinalizing, v.Snapshot().Phase)
	assert.False(t, v.Polling())

	clk.Step(finalizeDwell - time.Millisecond)
	select {
	case <-done:
		t.Fatal("summary shown before the dwell elapsed")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, PhaseFinalizing, v.Snapshot().Phase)

	clk.Step(time.Millisecond)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not finish after the dwell")
	}

	st := v.Snapshot()
	assert.Equal(t, PhaseSummary, st.Phase)
	assert.Equal(t, "INV-7", st.Session.InvoiceReferenceID)

	// No polling after the summary.
	clk.Step(pollInterval)
	assertNoCall(t, fetcher)
}

func TestStopFailureRestoresSnapshotAndResumesPolling(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	stopper := newFakeStopper(newError(KindBusiness, "Failed to stop charging session", nil))
	v, clk := newTestView(t, fetcher, stopper)

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseLive)

	err := v.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindBusiness, KindOf(err))

	st := v.Snapshot()
	assert.Equal(t, PhaseLive, st.Phase)
	require.NotNil(t, st.Session)
	assert.Equal(t, StatusActive, st.Session.Status)

	// No follow-up fetch was issued; polling resumes on the normal cadence.
	assertNoCall(t, fetcher)
	assert.True(t, v.Polling())
	clk.Step(pollInterval)
	waitCall(t, fetcher, 2)

	// The guest may retry.
	stopper.mu.Lock()
	stopper.err = nil
	stopper.mu.Unlock()
	done := runStop(v)
	waitCall(t, fetcher, 3)
	clk.Step(finalizeDwell)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseSummary, v.Snapshot().Phase)
}

func TestStopRejectsConcurrentStop(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	stopper := newFakeStopper(nil)
	stopper.release = make(chan struct{})
	v, clk := newTestView(t, fetcher, stopper)

	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseLive)

	done := runStop(v)
	<-stopper.calls

	assert.ErrorIs(t, v.Stop(context.Background()), ErrStopInProgress)
	assert.Equal(t, 1, stopper.Count())

	close(stopper.release)
	waitCall(t, fetcher, 2)
	clk.Step(finalizeDwell)
	require.NoError(t, <-done)
}

func TestUnmountStopsPolling(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	v, clk := newTestView(t, fetcher, newFakeStopper(nil))

	_, unsubscribe, err := v.Subscribe()
	require.NoError(t, err)
	v.Activate()
	waitCall(t, fetcher, 1)

	unsubscribe()

	assert.False(t, v.Polling())
	clk.Step(pollInterval)
	clk.Step(pollInterval)
	assertNoCall(t, fetcher)

	_, _, err = v.Subscribe()
	assert.ErrorIs(t, err, ErrViewClosed)
	assert.ErrorIs(t, v.Stop(context.Background()), ErrViewClosed)
}

func TestStopFinishesWhenViewClosesDuringDwell(t *testing.T) {
	fetcher := newFakeFetcher(
		fetchResponse{session: activeSession()},
		fetchResponse{session: completedSession()},
	)
	stopper := newFakeStopper(nil)
	v, _ := newTestView(t, fetcher, stopper)

	_, unsubscribe, err := v.Subscribe()
	require.NoError(t, err)
	v.Activate()
	waitCall(t, fetcher, 1)
	waitPhase(t, v, PhaseLive)

	done := runStop(v)
	waitCall(t, fetcher, 2)

	// The guest leaves the page while the overlay is still up.
	unsubscribe()

	select {
	case err := <-done:
		require.NoError(t, err, "a completed stop must not report the view closing")
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the view closed")
	}
	assert.Equal(t, 1, stopper.Count())
	st := v.Snapshot()
	assert.Equal(t, PhaseSummary, st.Phase)
	assert.Equal(t, "INV-7", st.Session.InvoiceReferenceID)
}
