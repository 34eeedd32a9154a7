package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/kitakits/internal/clock"
)

var testSecret = []byte("test-app-secret")

type recordingHandler struct {
	mu    sync.Mutex
	calls [][2]string
}

func (h *recordingHandler) HandleMessage(_ context.Context, externalID, text string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, [2]string{externalID, text})
	return "reply:" + text
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent [][2]string
	err  error
}

func (d *recordingDeliverer) SendText(_ context.Context, recipientID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, [2]string{recipientID, text})
	return d.err
}

func newTestServer(t *testing.T) (*http.ServeMux, *recordingHandler, *recordingDeliverer, *clock.FakeClock) {
	t.Helper()

	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	messages := &recordingHandler{}
	deliverer := &recordingDeliverer{}

	h := NewHandler(Config{
		VerifyToken: "verify-me",
		AppSecret:   testSecret,
		Version:     "1.2.3",
		Clock:       clk,
	}, messages, deliverer)

	mux := http.NewServeMux()
	h.Routes(mux)
	return mux, messages, deliverer, clk
}

func signedPost(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignatureValue(testSecret, []byte(body)))
	return req
}

func pagePayload(senderID, mid, text string) string {
	b, _ := json.Marshal(map[string]any{
		"object": "page",
		"entry": []any{
			map[string]any{
				"id":   "page-1",
				"time": 1,
				"messaging": []any{
					map[string]any{
						"sender":    map[string]string{"id": senderID},
						"recipient": map[string]string{"id": "page-1"},
						"timestamp": 1,
						"message":   map[string]any{"mid": mid, "text": text},
					},
				},
			},
		},
	})
	return string(b)
}

func TestVerify(t *testing.T) {
	mux, _, _, _ := newTestServer(t)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid subscription",
			query:    "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345",
			wantCode: http.StatusOK,
			wantBody: "12345",
		},
		{
			name:     "wrong token",
			query:    "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345",
			wantCode: http.StatusForbidden,
			wantBody: "Verification failed\n",
		},
		{
			name:     "wrong mode",
			query:    "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345",
			wantCode: http.StatusForbidden,
			wantBody: "Verification failed\n",
		},
		{
			name:     "missing params",
			query:    "",
			wantCode: http.StatusForbidden,
			wantBody: "Verification failed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestReceive_dispatchesMessage(t *testing.T) {
	mux, messages, deliverer, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(pagePayload("user-1", "mid.1", "[help]")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.Equal(t, [][2]string{{"user-1", "[help]"}}, messages.calls)
	require.Equal(t, [][2]string{{"user-1", "reply:[help]"}}, deliverer.sent)
}

func TestReceive_rejectsBadSignature(t *testing.T) {
	mux, messages, deliverer, _ := newTestServer(t)

	body := pagePayload("user-1", "mid.1", "[help]")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, SignatureValue([]byte("wrong"), []byte(body)))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, messages.calls)
	require.Empty(t, deliverer.sent)
}

func TestReceive_rejectsMissingSignature(t *testing.T) {
	mux, messages, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(pagePayload("u", "m", "hi")))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, messages.calls)
}

func TestReceive_malformedJSON(t *testing.T) {
	mux, messages, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(`{"object":`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, messages.calls)
}

func TestReceive_ignoresNonPageObjects(t *testing.T) {
	mux, messages, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(`{"object":"instagram","entry":[]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, messages.calls)
}

func TestReceive_skipsEventsWithoutText(t *testing.T) {
	mux, messages, _, _ := newTestServer(t)

	body := `{"object":"page","entry":[{"id":"p","messaging":[
		{"sender":{"id":"u1"},"recipient":{"id":"p"},"delivery":{"mids":["x"]}},
		{"sender":{"id":"u1"},"recipient":{"id":"p"},"message":{"mid":"echo","text":"hi","is_echo":true}},
		{"sender":{"id":"u2"},"recipient":{"id":"p"},"message":{"mid":"m2","text":"[count]"}}
	]}]}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, [][2]string{{"u2", "[count]"}}, messages.calls)
}

func TestReceive_deduplicatesRedeliveries(t *testing.T) {
	mux, messages, _, clk := newTestServer(t)
	body := pagePayload("user-1", "mid.dup", "[add]")

	for range 3 {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, signedPost(body))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Len(t, messages.calls, 1)

	clk.Advance(deduplicationWindow + time.Second)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, messages.calls, 2)
}

func TestReceive_deliveryFailureStillOK(t *testing.T) {
	mux, messages, deliverer, _ := newTestServer(t)
	deliverer.err = errors.New("graph api down")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(pagePayload("user-1", "mid.1", "[help]")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, messages.calls, 1)
	require.Len(t, deliverer.sent, 1)
}

func TestReceive_multipleEntries(t *testing.T) {
	mux, messages, _, _ := newTestServer(t)

	body := `{"object":"page","entry":[
		{"id":"p","messaging":[{"sender":{"id":"a"},"message":{"mid":"1","text":"one"}}]},
		{"id":"p","messaging":[{"sender":{"id":"b"},"message":{"mid":"2","text":"two"}}]}
	]}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedPost(body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, [][2]string{{"a", "one"}, {"b", "two"}}, messages.calls)
}

func TestHealth(t *testing.T) {
	mux, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, healthResponse{
		Status:    "healthy",
		Timestamp: "2026-03-01T12:00:00Z",
		Version:   "1.2.3",
	}, got)
}

func TestWebhook_methodNotAllowed(t *testing.T) {
	mux, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/webhook", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
