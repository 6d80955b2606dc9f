package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		status     string
		message    string
		want       ErrorKind
	}{
		{
			name:       "unregistered token",
			httpStatus: http.StatusBadRequest,
			status:     "UNREGISTERED",
			message:    "Requested entity was not found",
			want:       ErrorUnregistered,
		},
		{
			name:       "not found status",
			httpStatus: http.StatusNotFound,
			status:     "NOT_FOUND",
			message:    "Requested entity was not found",
			want:       ErrorUnregistered,
		},
		{
			name:       "invalid token argument",
			httpStatus: http.StatusBadRequest,
			status:     "INVALID_ARGUMENT",
			message:    "The registration token is not a valid FCM registration token",
			want:       ErrorInvalidToken,
		},
		{
			name:       "server error",
			httpStatus: http.StatusInternalServerError,
			status:     "INTERNAL",
			message:    "Internal server error",
			want:       ErrorUnknown,
		},
		{
			name:       "quota exceeded",
			httpStatus: http.StatusTooManyRequests,
			status:     "QUOTA_EXCEEDED",
			message:    "Sending limit exceeded",
			want:       ErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.httpStatus, tt.status, tt.message); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_Send(t *testing.T) {
	var captured sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "projects/p/messages/msg-1"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "key", 5*time.Second)
	id, err := client.Send(context.Background(), &Message{
		Token:        "tok1",
		Notification: Notification{Title: "Morning check-in", Body: "You're on a 4 day streak"},
		Data:         map[string]string{"type": "nudge", "user": "a@example.com"},
		ChannelID:    "nudges",
		Sound:        "default",
		Badge:        1,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "projects/p/messages/msg-1" {
		t.Errorf("Send() message id = %q", id)
	}

	if captured.Message.Token != "tok1" {
		t.Errorf("wire token = %q, want tok1", captured.Message.Token)
	}
	if captured.Message.Data["type"] != "nudge" || captured.Message.Data["user"] != "a@example.com" {
		t.Errorf("wire data = %v, want fixed nudge payload", captured.Message.Data)
	}
	if captured.Message.Android == nil || captured.Message.Android.Notification.ChannelID != "nudges" {
		t.Error("wire android channel hint missing")
	}
	if captured.Message.APNS == nil || captured.Message.APNS.Payload.APS.Badge != 1 {
		t.Error("wire apns badge hint missing")
	}
}

func TestHTTPClient_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"Requested entity was not found","status":"UNREGISTERED"}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "key", 5*time.Second)
	_, err := client.Send(context.Background(), &Message{Token: "gone"})
	if err == nil {
		t.Fatal("Send() error = nil, want ProviderError")
	}

	provErr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("Send() error type = %T, want *ProviderError", err)
	}
	if provErr.Kind != ErrorUnregistered {
		t.Errorf("Kind = %v, want %v", provErr.Kind, ErrorUnregistered)
	}
	if provErr.Message != "Requested entity was not found" {
		t.Errorf("Message = %q, want provider message retained", provErr.Message)
	}
}
