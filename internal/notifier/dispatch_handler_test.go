package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/volunteer/internal/events"
)

func reminderMessage(t *testing.T) Message {
	t.Helper()
	payload, err := json.Marshal(events.ActivityReminder{
		UserID: "user-1",
		Activity: events.ActivitySnapshot{
			ActivityID: "act-1",
			Title:      "Beach cleanup",
			StartsAt:   time.Date(2026, time.July, 4, 9, 0, 0, 0, time.UTC),
			Location:   "Main Beach",
		},
		SendAt: time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return Message{
		Topic:     "activity_reminders",
		EventType: events.TypeActivityReminder,
		Payload:   payload,
	}
}

func TestDispatchHandlerPostsDelivery(t *testing.T) {
	var received Delivery
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/deliveries", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	handler := NewDispatchHandler(server.URL, time.Second)
	msg := reminderMessage(t)

	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Equal(t, "user-1", received.RecipientUserID)
	require.Equal(t, events.TypeActivityReminder, received.MessageKind)
	require.Equal(t, time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC), received.SendAt.UTC())
}

func TestDispatchHandlerNotificationDelivery(t *testing.T) {
	var received Delivery
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	occurredAt := time.Date(2026, time.July, 1, 15, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(events.ActivityNotification{
		ActivityID: "act-1",
		UserID:     "user-2",
		Status:     "cancelled",
		Message:    "activity cancelled",
		OccurredAt: occurredAt,
	})
	require.NoError(t, err)

	handler := NewDispatchHandler(server.URL, time.Second)
	err = handler.Handle(context.Background(), Message{
		Topic:     "activity_notifications",
		EventType: events.TypeActivityNotification,
		Payload:   payload,
	})
	require.NoError(t, err)
	require.Equal(t, "user-2", received.RecipientUserID)
	require.Equal(t, events.TypeActivityNotification, received.MessageKind)
	require.Equal(t, occurredAt, received.SendAt.UTC())
}

func TestDispatchHandlerRejectionIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "downstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	handler := NewDispatchHandler(server.URL, time.Second)
	err := handler.Handle(context.Background(), reminderMessage(t))
	require.Error(t, err)
}

func TestDispatchHandlerSkipsUndecodablePayloads(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	handler := NewDispatchHandler(server.URL, time.Second)

	// Unknown event types and broken payloads are not retryable; the processor
	// should commit and move on.
	require.NoError(t, handler.Handle(context.Background(), Message{
		Topic:     "activity_reminders",
		EventType: "activity.renamed",
		Payload:   json.RawMessage(`{}`),
	}))
	require.NoError(t, handler.Handle(context.Background(), Message{
		Topic:     "activity_reminders",
		EventType: events.TypeActivityReminder,
		Payload:   json.RawMessage(`{broken`),
	}))
	require.False(t, called)
}
