package notifier

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type recordingHandler struct {
	handled []Message
	err     error
}

func (h *recordingHandler) Handle(ctx context.Context, msg Message) error {
	h.handled = append(h.handled, msg)
	return h.err
}

func framedMessage(topic, eventType string, schemaID uint32, payload []byte) kafka.Message {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return kafka.Message{
		Topic: topic,
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "schema_subject", Value: []byte(topic + "-value")},
		},
	}
}

func quietProcessor(reader Reader, handler Handler) *Processor {
	return NewProcessor(reader, handler, WithLogger(log.New(io.Discard, "", 0)))
}

func TestProcessorDecodesAndCommits(t *testing.T) {
	payload := []byte(`{"user_id":"user-1"}`)
	reader := &scriptedReader{messages: []kafka.Message{
		framedMessage("activity_reminders", "activity.reminder", 7, payload),
	}}
	handler := &recordingHandler{}

	err := quietProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, handler.handled, 1)
	event := handler.handled[0]
	require.Equal(t, "activity.reminder", event.EventType)
	require.Equal(t, "activity_reminders-value", event.SchemaSubject)
	require.Equal(t, 7, event.SchemaID)
	require.JSONEq(t, string(payload), string(event.Payload))

	require.Len(t, reader.committed, 1)
}

func TestProcessorLeavesFailedMessagesUncommitted(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		framedMessage("activity_reminders", "activity.reminder", 1, []byte(`{}`)),
	}}
	handler := &recordingHandler{err: errors.New("dispatcher down")}

	err := quietProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, handler.handled, 1)
	require.Empty(t, reader.committed)
}

func TestProcessorCommitsPoisonMessages(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		{Topic: "activity_reminders", Value: []byte("xx")},
		{
			Topic:   "activity_reminders",
			Value:   make([]byte, 16),
			Headers: nil, // missing event_type header
		},
	}}
	handler := &recordingHandler{}

	err := quietProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Empty(t, handler.handled)
	require.Len(t, reader.committed, 2)
}
