// Package messenger sends replies through the Messenger Send API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultGraphURL is the Graph API version the bot was built against.
	DefaultGraphURL = "https://graph.facebook.com/v18.0"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxErrorBody = 4096
)

// Config holds Send API client configuration
type Config struct {
	GraphURL    string
	AccessToken string
	Timeout     time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client posts messages to the Send API. No request is retried.
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    *telemetry.Metrics
}

// NewClient creates a Send API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}

	u, err := url.Parse(strings.TrimSuffix(graphURL, "/") + "/me/messages")
	if err != nil {
		return nil, fmt.Errorf("invalid graph url: %w", err)
	}
	u.RawQuery = url.Values{"access_token": {cfg.AccessToken}}.Encode()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:   u.String(),
		httpClient: httpClient,
		metrics:    telemetry.GetMetrics(),
	}, nil
}

type recipient struct {
	ID string `json:"id"`
}

type textMessage struct {
	Recipient recipient `json:"recipient"`
	Message   struct {
		Text string `json:"text"`
	} `json:"message"`
}

type attachmentMessage struct {
	Attachment struct {
		Type    string   `json:"type"`
		Payload struct{} `json:"payload"`
	} `json:"attachment"`
}

// SendText sends a plain text message to recipientID.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	msg := textMessage{Recipient: recipient{ID: recipientID}}
	msg.Message.Text = text

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	return c.post(ctx, "text", "application/json", bytes.NewReader(body))
}

// SendFile uploads the file at path as an attachment to recipientID.
func (c *Client) SendFile(ctx context.Context, recipientID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	recipientJSON, err := json.Marshal(recipient{ID: recipientID})
	if err != nil {
		return fmt.Errorf("failed to encode recipient: %w", err)
	}

	msg := attachmentMessage{}
	msg.Attachment.Type = "file"
	messageJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode attachment message: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("recipient", string(recipientJSON)); err != nil {
		return fmt.Errorf("failed to write recipient field: %w", err)
	}
	if err := w.WriteField("message", string(messageJSON)); err != nil {
		return fmt.Errorf("failed to write message field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="filedata"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", xlsxContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.post(ctx, "file", w.FormDataContentType(), &buf)
}

func (c *Client) post(ctx context.Context, kind, contentType string, body io.Reader) error {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	c.metrics.DeliveriesTotal.Add(ctx, 1, attrs)

	err := c.do(ctx, contentType, body)
	if err != nil {
		c.metrics.DeliveryFailuresTotal.Add(ctx, 1, attrs)
		return err
	}

	log.Debug().Str("kind", kind).Msg("Delivered message")
	return nil
}

func (c *Client) redactedEndpoint() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

func (c *Client) do(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the endpoint carries the access token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.redactedEndpoint()
		}
		return fmt.Errorf("send api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("send api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
