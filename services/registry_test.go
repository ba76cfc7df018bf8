package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestRegistry(fetcher *fakeFetcher) (*ViewRegistry, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Now())
	return NewViewRegistry(ViewDeps{
		Fetcher:       fetcher,
		Stopper:       newFakeStopper(nil),
		Clock:         clk,
		PollInterval:  pollInterval,
		FinalizeDwell: finalizeDwell,
	}), clk
}

func TestViewRegistryAttachSharesView(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	reg, _ := newTestRegistry(fetcher)
	defer reg.CloseAll()

	v1, _, unsub1, err := reg.Attach("view-1", "tok")
	require.NoError(t, err)
	waitCall(t, fetcher, 1)

	v2, _, unsub2, err := reg.Attach("view-1", "tok")
	require.NoError(t, err)
	assert.Same(t, v1, v2)
	assert.Equal(t, 1, reg.Count())

	_, _, _, err = reg.Attach("view-1", "other")
	assert.ErrorIs(t, err, ErrTokenMismatch)

	unsub1()
	_, ok := reg.Get("view-1")
	assert.True(t, ok, "view stays while a subscriber remains")

	unsub2()
	_, ok = reg.Get("view-1")
	assert.False(t, ok)
	assert.False(t, v1.Polling())
}

func TestViewRegistryReattachCreatesFreshView(t *testing.T) {
	fetcher := newFakeFetcher(fetchResponse{session: activeSession()})
	reg, _ := newTestRegistry(fetcher)
	defer reg.CloseAll()

	v1, _, unsub, err := reg.Attach("view-1", "tok")
	require.NoError(t, err)
	waitCall(t, fetcher, 1)
	unsub()

	v2, _, unsub2, err := reg.Attach("view-1", "tok")
	require.NoError(t, err)
	defer unsub2()
	assert.NotSame(t, v1, v2)
	waitCall(t, fetcher, 2)
}

func TestViewRegistryTransientIsNotRegistered(t *testing.T) {
	reg, _ := newTestRegistry(newFakeFetcher(fetchResponse{session: activeSession()}))

	v := reg.Transient("view-9", "tok")
	defer v.Close()

	_, ok := reg.Get("view-9")
	assert.False(t, ok)
	assert.False(t, v.Polling())
}

func TestPaymentFormRegistryExpiry(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	reg := NewPaymentFormRegistry(30*time.Minute, clk)

	reg.Add(NewPaymentForm("f1", testNav, testSecret, nil, &fakeProvider{}, nil))
	clk.Step(10 * time.Minute)
	reg.Add(NewPaymentForm("f2", testNav, testSecret, nil, &fakeProvider{}, nil))

	_, ok := reg.Get("f1")
	assert.True(t, ok)

	clk.Step(25 * time.Minute)
	_, ok = reg.Get("f1")
	assert.False(t, ok)
	_, ok = reg.Get("f2")
	assert.True(t, ok)

	assert.Equal(t, 1, reg.CleanupExpired())
	assert.Equal(t, 1, reg.Count())

	reg.Remove("f2")
	assert.Zero(t, reg.Count())
}

func TestPaymentFormRegistryAddStampsUnderFormLock(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	reg := NewPaymentFormRegistry(30*time.Minute, clk)
	form := NewPaymentForm("f1", testNav, testSecret, nil, &fakeProvider{confirm: capturable()}, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = form.CreatedAt()
			_, _ = reg.Get("f1")
		}
	}()
	go func() {
		defer wg.Done()
		_, _ = form.Submit(context.Background(), "pm_card", "")
	}()
	for i := 0; i < 100; i++ {
		reg.Add(form)
	}
	wg.Wait()

	assert.Equal(t, clk.Now(), form.CreatedAt(), "expiry runs from the registry clock")
	clk.Step(31 * time.Minute)
	assert.Equal(t, 1, reg.CleanupExpired())
}
