package messenger

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		GraphURL:    srv.URL + "/v18.0/",
		AccessToken: "page-token",
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)

	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestNewClient_DefaultGraphURL(t *testing.T) {
	client, err := NewClient(Config{AccessToken: "a b"})
	require.NoError(t, err)
	require.Equal(t, "https://graph.facebook.com/v18.0/me/messages?access_token=a+b", client.endpoint)
}

func TestClient_SendText(t *testing.T) {
	var got map[string]map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v18.0/me/messages", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.SendText(t.Context(), "psid-1", "Authentication successful"))
	require.Equal(t, "psid-1", got["recipient"]["id"])
	require.Equal(t, "Authentication successful", got["message"]["text"])
}

func TestClient_SendTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid OAuth access token"}}`, http.StatusBadRequest)
	})

	err := client.SendText(t.Context(), "psid-1", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
	require.Contains(t, err.Error(), "Invalid OAuth access token")
}

func TestClient_SendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statistics_report_20250101_120000.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("workbook"), 0o600))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		assert.JSONEq(t, `{"id":"psid-1"}`, r.FormValue("recipient"))
		assert.JSONEq(t, `{"attachment":{"type":"file","payload":{}}}`, r.FormValue("message"))

		file, header, err := r.FormFile("filedata")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()

		assert.Equal(t, "statistics_report_20250101_120000.xlsx", header.Filename)
		assert.Equal(t, xlsxContentType, header.Header.Get("Content-Type"))

		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, "workbook", string(data))

		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.SendFile(t.Context(), "psid-1", path))
}

func TestClient_SendFileMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})

	err := client.SendFile(t.Context(), "psid-1", filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
}

func TestClient_TransportErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewClient(Config{
		GraphURL:    srv.URL,
		AccessToken: "secret-page-token",
	})
	require.NoError(t, err)

	err = client.SendText(t.Context(), "psid-1", "hi")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "secret-page-token")
	require.Contains(t, err.Error(), "/me/messages")
}
