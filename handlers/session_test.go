package handlers

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestcharge/services"
)

func activeSession() *services.Session {
	return &services.Session{
		ID:            "s-1",
		Status:        services.StatusActive,
		Currency:      "$",
		TotalEnergy:   3.2,
		TotalTime:     0.5,
		StartDateTime: "2024-05-01T10:00:00Z",
		LocationName:  "Harbour Depot",
	}
}

func completedSession() *services.Session {
	s := activeSession()
	s.Status = services.StatusCompleted
	s.TotalCost = &services.Price{InclVAT: 5}
	s.InvoiceReferenceID = "INV-7"
	return s
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// attachView registers a live view the way an open stream would.
func attachView(t *testing.T, env *testEnv, id, token string) *services.SessionView {
	t.Helper()
	view, _, unsubscribe, err := env.views.Attach(id, token)
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	require.Eventually(t, func() bool { return view.Snapshot().Session != nil }, time.Second, 5*time.Millisecond)
	return view
}

func post(env *testEnv, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("HX-Request", "true")
	return env.do(req)
}

func TestSessionPageRendersStreamShell(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.get("/CP-1/2/success?token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `sse-connect="/sessions/id-1/events?token=tok"`)
	assert.Contains(t, body, "Loading session...")
	assert.Equal(t, 0, env.views.Count(), "views start when the stream connects")

	rec = env.get("/CP-1/2/success?token=tok&transport=ws")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ws-connect="/sessions/id-2/ws?token=tok"`)
}

func TestSessionPageRejectsTokens(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.get("/CP-1/2/success")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No token provided")

	rec = env.get("/CP-1/2/success?token=" + signedToken(t, time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "This session link has expired")

	rec = env.get("/CP-1/2/success?token=" + signedToken(t, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStopSessionShowsSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = completedSession()

	rec := post(env, "/sessions/v1/stop?token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session has been stopped successfully")
	assert.Equal(t, 1, env.backend.Stops())
}

func TestStopSessionOnLiveView(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	view := attachView(t, env, "v1", "tok")

	rec := post(env, "/sessions/v1/stop?token=other")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, env.backend.Stops())

	rec = post(env, "/sessions/v1/stop?token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.PhaseSummary, view.Snapshot().Phase)
	assert.False(t, view.Polling())

	rec = post(env, "/sessions/v1/stop?token=tok")
	assert.Equal(t, http.StatusConflict, rec.Code)
	requireTrigger(t, rec, "showToast", "Charging session is already stopped")
	assert.Equal(t, 1, env.backend.Stops())
}

func TestStopSessionFailureAlerts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	env.backend.stopErr = errors.New("backend unavailable")

	rec := post(env, "/sessions/v1/stop?token=tok")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	requireTrigger(t, rec, "showAlert", "Failed to stop charging session. Please try again.")

	rec = post(env, "/sessions/v1/stop")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	requireTrigger(t, rec, "showAlert", "No token provided")
}

func TestDownloadInvoice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.invoice = []byte("<html>invoice</html>")

	rec := env.get("/sessions/v1/invoice?token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=invoice_session.html", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "<html>invoice</html>", rec.Body.String())

	env.backend.session = completedSession()
	attachView(t, env, "v2", "tok")
	rec = env.get("/sessions/v2/invoice?token=tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=invoice_INV-7.html", rec.Header().Get("Content-Disposition"))
}

func TestDownloadInvoiceRefusals(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	attachView(t, env, "v1", "tok")

	rec := env.get("/sessions/v1/invoice?token=tok")
	assert.Equal(t, http.StatusConflict, rec.Code)
	requireTrigger(t, rec, "showToast", "The invoice is available once the session is completed")

	rec = env.get("/sessions/v1/invoice?token=other")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.backend.invoiceErr = errors.New("timeout")
	rec = env.get("/sessions/v9/invoice?token=tok")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	requireTrigger(t, rec, "showToast", "Failed to download invoice. Please try again.")
}

func TestWriteEventFramesEveryLine(t *testing.T) {
	rec := httptest.NewRecorder()
	err := writeEvent(context.Background(), rec, "session-update", templ.Raw("<p>a</p>\n<p>b</p>"))
	require.NoError(t, err)
	assert.Equal(t, "event: session-update\ndata: <p>a</p>\ndata: <p>b</p>\n\n", rec.Body.String())
}

func TestSessionEventsStreamsUpdates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/v1/events?token=tok", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	found := make(chan bool, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), "Harbour Depot") {
				found <- true
				return
			}
		}
		found <- false
	}()

	select {
	case ok := <-found:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no session update received")
	}
	assert.Equal(t, 1, env.views.Count())

	cancel()
	resp.Body.Close()
	require.Eventually(t, func() bool { return env.views.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionEventsRejectsForeignToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	attachView(t, env, "v1", "tok")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/sessions/v1/events?token=other")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSessionSocketPushesOOBSwaps(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.session = activeSession()
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/v1/ws?token=tok"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), `hx-swap-oob="innerHTML"`)
		if strings.Contains(string(msg), "Harbour Depot") {
			break
		}
	}

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.views.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
