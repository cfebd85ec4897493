package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/rafaelmorch/platform-sports/internal/logging"
)

func framed(schemaID int, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"activity_id":"act-1","user_id":"u1"}`
	msg := kafka.Message{
		Topic:     "attendance_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Key:       []byte("act-1"),
		Value:     framed(42, payload),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("attendance.confirmed")}},
	}

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}
	recorded := auditedEvents.WithLabelValues("attendance.confirmed", outcomeRecorded)
	before := testutil.ToFloat64(recorded)

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "attendance.confirmed", handler.last.EventType)
	require.Equal(t, "act-1", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))

	require.InDelta(t, before+1, testutil.ToFloat64(recorded), 0.0001)
	require.Equal(t, float64(msg.Time.Unix()), testutil.ToFloat64(lastAuditedGauge.WithLabelValues("attendance_events")))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	msg := kafka.Message{
		Topic:   "activity_events",
		Offset:  20,
		Value:   framed(99, `{"activity_id":"act-2"}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("activity.updated")}},
	}

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{err: errors.New("boom")}
	failed := auditedEvents.WithLabelValues("activity.updated", outcomeFailed)
	before := testutil.ToFloat64(failed)

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(failed), 0.0001)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	messages := []kafka.Message{
		{Topic: "chat_events", Offset: 1, Value: framed(1, `{}`)},
		{Topic: "chat_events", Offset: 2, Value: []byte(`{"raw":true}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("chat.message_posted")}}},
		{Topic: "chat_events", Offset: 3, Value: framed(1, `not-json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("chat.message_posted")}}},
	}
	reader := &stubReader{messages: messages}
	handler := &stubHandler{}
	before := testutil.ToFloat64(undecodableRecords.WithLabelValues("chat_events"))

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.InDelta(t, before+3, testutil.ToFloat64(undecodableRecords.WithLabelValues("chat_events")), 0.0001)
}

func TestSubjectOfFallsBackToKey(t *testing.T) {
	ref, err := subjectOf(Message{EventType: "chat.message_posted", Key: "act-9", Payload: []byte(`{"user_id":"u2"}`)})
	require.NoError(t, err)
	require.Equal(t, "act-9", ref.ActivityID)
	require.Equal(t, "u2", ref.UserID)

	_, err = subjectOf(Message{EventType: "activity.deleted", Payload: []byte(`{}`)})
	require.Error(t, err)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls += len(msgs)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
