package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/volunteer/internal/events"
)

// Delivery is the tuple handed to the Notification Dispatcher. The dispatcher
// owns channel selection (push, SMS, email) and delayed sends; this service
// only produces the tuples.
type Delivery struct {
	RecipientUserID string          `json:"recipient_user_id"`
	MessageKind     string          `json:"message_kind"`
	Payload         json.RawMessage `json:"payload"`
	SendAt          time.Time       `json:"send_at"`
}

// DispatchHandler forwards decoded events to the external Notification
// Dispatcher over HTTP. Each call is bounded by its own timeout so a slow
// dispatcher cannot stall the consume loop indefinitely.
type DispatchHandler struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewDispatchHandler constructs a handler targeting the dispatcher base URL.
func NewDispatchHandler(baseURL string, timeout time.Duration) *DispatchHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DispatchHandler{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Handle converts the event into a delivery tuple and posts it. A non-2xx
// response is an error; the processor leaves the message uncommitted so it is
// retried without blocking later messages for other recipients.
func (h *DispatchHandler) Handle(ctx context.Context, msg Message) error {
	delivery, err := toDelivery(msg)
	if err != nil {
		// Payload mismatches are not retryable; swallow so the processor commits.
		recordDispatchSkipped(msg.Topic)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	body, err := json.Marshal(delivery)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/deliveries", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		recordDispatchFailure(msg.Topic)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		recordDispatchFailure(msg.Topic)
		return fmt.Errorf("dispatcher rejected delivery: %d %s", resp.StatusCode, raw)
	}

	recordDispatchSuccess(msg.Topic)
	return nil
}

func toDelivery(msg Message) (Delivery, error) {
	switch msg.EventType {
	case events.TypeActivityReminder:
		var reminder events.ActivityReminder
		if err := json.Unmarshal(msg.Payload, &reminder); err != nil {
			return Delivery{}, err
		}
		return Delivery{
			RecipientUserID: reminder.UserID,
			MessageKind:     msg.EventType,
			Payload:         msg.Payload,
			SendAt:          reminder.SendAt,
		}, nil
	case events.TypeActivityNotification:
		var notification events.ActivityNotification
		if err := json.Unmarshal(msg.Payload, &notification); err != nil {
			return Delivery{}, err
		}
		return Delivery{
			RecipientUserID: notification.UserID,
			MessageKind:     msg.EventType,
			Payload:         msg.Payload,
			SendAt:          notification.OccurredAt,
		}, nil
	}
	return Delivery{}, fmt.Errorf("unknown event type: %s", msg.EventType)
}
