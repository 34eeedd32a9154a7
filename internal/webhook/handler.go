// Package webhook serves the Messenger webhook: the subscription
// handshake, signed message deliveries and a health check.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/clock"
	httpmiddleware "github.com/wolfeidau/kitakits/internal/http"
	"github.com/wolfeidau/kitakits/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxBodySize bounds inbound payloads. Message batches are small.
	maxBodySize = 1 << 20

	// deduplicationWindow is how long message IDs are remembered.
	deduplicationWindow = time.Hour

	tracerName = "github.com/wolfeidau/kitakits/internal/webhook"
)

// MessageHandler turns inbound text into a reply.
type MessageHandler interface {
	HandleMessage(ctx context.Context, externalID, text string) string
}

// TextDeliverer sends a text reply.
type TextDeliverer interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// Config configures the webhook Handler.
type Config struct {
	VerifyToken string
	AppSecret   []byte
	Version     string
	Clock       clock.Clock
}

// Handler serves /webhook and /health.
type Handler struct {
	verifyToken string
	appSecret   []byte
	version     string
	clock       clock.Clock

	messages  MessageHandler
	deliverer TextDeliverer
	metrics   *telemetry.Metrics

	// mid -> first seen
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config, messages MessageHandler, deliverer TextDeliverer) *Handler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Handler{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		version:     cfg.Version,
		clock:       clk,
		messages:    messages,
		deliverer:   deliverer,
		metrics:     telemetry.GetMetrics(),
		seen:        make(map[string]time.Time),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	clientIP := httpmiddleware.ClientIPMiddleware()

	mux.Handle("GET /webhook", clientIP(http.HandlerFunc(h.Verify)))
	mux.Handle("POST /webhook", clientIP(http.HandlerFunc(h.Receive)))
	mux.HandleFunc("GET /health", h.Health)
}

// Verify answers the subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		zerolog.Ctx(r.Context()).Warn().Msg("webhook verification failed")
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	zerolog.Ctx(r.Context()).Info().Msg("webhook verified")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles a signed message delivery.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to read webhook body")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := VerifySignature(h.appSecret, body, r.Header.Get(SignatureHeader)); err != nil {
		h.metrics.SignatureFailuresTotal.Add(ctx, 1)
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
			Msg("invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("malformed webhook payload")
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}

	if evt.Object == "page" {
		for _, e := range evt.Entry {
			for _, m := range e.Messaging {
				h.dispatch(ctx, m)
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (h *Handler) dispatch(ctx context.Context, m messagingEvent) {
	if m.Message == nil || m.Message.IsEcho || m.Message.Text == "" || m.Sender.ID == "" {
		return
	}

	h.metrics.WebhookMessagesTotal.Add(ctx, 1)

	if m.Message.MID != "" && h.isDuplicate(m.Message.MID) {
		h.metrics.WebhookDuplicatesTotal.Add(ctx, 1)
		zerolog.Ctx(ctx).Debug().Str("mid", m.Message.MID).Msg("duplicate message, ignoring")
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "webhook.message",
		trace.WithAttributes(attribute.String("messaging.sender_id", m.Sender.ID)))
	defer span.End()

	zerolog.Ctx(ctx).Info().Str("sender_id", m.Sender.ID).Str("mid", m.Message.MID).Msg("received message")

	reply := h.messages.HandleMessage(ctx, m.Sender.ID, m.Message.Text)

	if err := h.deliverer.SendText(ctx, m.Sender.ID, reply); err != nil {
		span.RecordError(err)
		zerolog.Ctx(ctx).Error().Err(err).Str("sender_id", m.Sender.ID).Msg("failed to deliver reply")
	}
}

// isDuplicate records mid and reports whether it was already seen within
// the deduplication window. Expired entries are pruned on every call.
func (h *Handler) isDuplicate(mid string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()

	for id, seenAt := range h.seen {
		if now.Sub(seenAt) > deduplicationWindow {
			delete(h.seen, id)
		}
	}

	if _, exists := h.seen[mid]; exists {
		return true
	}
	h.seen[mid] = now
	return false
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:    "healthy",
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}
