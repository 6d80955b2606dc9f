// Package push is the boundary to the push provider. It sends one message at
// a time and classifies provider failures; it never retries, because a
// duplicate push is worse than a missed one.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Notification is the visible part of a push message
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is one push delivery request. Data carries the small fixed
// structured payload; channel, sound and badge are fixed presentation hints.
type Message struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	ChannelID    string            `json:"channel_id,omitempty"`
	Sound        string            `json:"sound,omitempty"`
	Badge        int               `json:"badge,omitempty"`
}

// ErrorKind classifies a provider rejection
type ErrorKind string

const (
	// ErrorInvalidToken means the token is malformed or expired.
	ErrorInvalidToken ErrorKind = "invalid_token"
	// ErrorUnregistered means the provider no longer knows the token.
	ErrorUnregistered ErrorKind = "unregistered"
	// ErrorUnknown covers every other provider failure.
	ErrorUnknown ErrorKind = "unknown"
)

// ProviderError is a classified provider rejection with the original provider
// message retained
type ProviderError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("push provider rejected send (%s, status %d): %s", e.Kind, e.Status, e.Message)
}

// Client sends a single push message and returns the provider message id
type Client interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// HTTPClient talks to an FCM-v1-shaped HTTP endpoint
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient creates a push client with an explicit request timeout
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendRequest struct {
	Message wireMessage `json:"message"`
}

type wireMessage struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
	APNS         *apnsConfig       `json:"apns,omitempty"`
}

type androidConfig struct {
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	ChannelID string `json:"channel_id,omitempty"`
	Sound     string `json:"sound,omitempty"`
}

type apnsConfig struct {
	Payload apnsPayload `json:"payload"`
}

type apnsPayload struct {
	APS apsDictionary `json:"aps"`
}

type apsDictionary struct {
	Badge int    `json:"badge,omitempty"`
	Sound string `json:"sound,omitempty"`
}

type sendResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send delivers one message and returns the provider message id
func (c *HTTPClient) Send(ctx context.Context, msg *Message) (string, error) {
	wire := sendRequest{
		Message: wireMessage{
			Token:        msg.Token,
			Notification: msg.Notification,
			Data:         msg.Data,
		},
	}
	if msg.ChannelID != "" || msg.Sound != "" {
		wire.Message.Android = &androidConfig{
			Notification: androidNotification{ChannelID: msg.ChannelID, Sound: msg.Sound},
		}
		wire.Message.APNS = &apnsConfig{
			Payload: apnsPayload{APS: apsDictionary{Badge: msg.Badge, Sound: msg.Sound}},
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read push response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("failed to decode push response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return parsed.Name, nil
	}

	status := ""
	message := string(respBody)
	if parsed.Error != nil {
		status = parsed.Error.Status
		message = parsed.Error.Message
	}

	return "", &ProviderError{
		Kind:    classify(resp.StatusCode, status, message),
		Status:  resp.StatusCode,
		Message: message,
	}
}

// classify maps a provider rejection onto an ErrorKind. FCM reports expired
// or malformed tokens as INVALID_ARGUMENT on the token field and unknown
// tokens as UNREGISTERED / NOT_FOUND.
func classify(httpStatus int, status, message string) ErrorKind {
	upper := strings.ToUpper(status + " " + message)

	switch {
	case strings.Contains(upper, "UNREGISTERED"):
		return ErrorUnregistered
	case httpStatus == http.StatusNotFound || strings.Contains(upper, "NOT_FOUND"):
		return ErrorUnregistered
	case strings.Contains(upper, "INVALID_ARGUMENT") && strings.Contains(upper, "TOKEN"):
		return ErrorInvalidToken
	case strings.Contains(upper, "INVALID REGISTRATION"):
		return ErrorInvalidToken
	default:
		return ErrorUnknown
	}
}
