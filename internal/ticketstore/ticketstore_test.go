//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ticketstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, "ticket-outcomes", slog.New(slog.NewTextHandler(io.Discard, nil)))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := Record{
		TraceID:          "0b8c",
		Status:           "escalated",
		Category:         "support",
		Escalated:        true,
		EscalatedAt:      &at,
		TargetDepartment: "support",
		Confidence:       0.42,
		CreatedAt:        at,
	}
	require.NoError(t, sink.Publish(context.Background(), rec))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "0b8c", string(w.msgs[0].Key))
	assert.Equal(t, "status", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "escalated", string(w.msgs[0].Headers[0].Value))

	var decoded Record
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "support", decoded.TargetDepartment)
	require.NotNil(t, decoded.EscalatedAt)
	assert.True(t, decoded.EscalatedAt.Equal(at))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_KeysByTicket(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, "ticket-outcomes", nil)

	require.NoError(t, sink.Publish(context.Background(), Record{TraceID: "trace-1", Status: "answered"}))
	require.NoError(t, sink.Publish(context.Background(), Record{TraceID: "trace-2", TicketID: "T-42", Status: "escalated"}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "trace-1", string(w.msgs[0].Key))
	assert.Equal(t, "T-42", string(w.msgs[1].Key))
}

func TestNewKafkaSink_HashBalancer(t *testing.T) {
	sink := NewKafkaSink([]string{"localhost:9092"}, "ticket-outcomes", nil)
	defer sink.Close()

	w, ok := sink.writer.(*kafka.Writer)
	require.True(t, ok)
	_, isHash := w.Balancer.(*kafka.Hash)
	assert.True(t, isHash, "records of one ticket must share a partition")
}

func TestKafkaSink_PublishError(t *testing.T) {
	sink := newKafkaSink(&fakeWriter{err: errors.New("broker unreachable")}, "t", nil)
	err := sink.Publish(context.Background(), Record{TraceID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}

func TestMemorySink(t *testing.T) {
	var m MemorySink
	require.NoError(t, m.Publish(context.Background(), Record{TraceID: "a"}))
	require.NoError(t, m.Publish(context.Background(), Record{TraceID: "b"}))

	recs := m.Records()
	require.Len(t, recs, 2)
	recs[0].TraceID = "mutated"
	assert.Equal(t, "a", m.Records()[0].TraceID)
	assert.NoError(t, NopSink{}.Publish(context.Background(), Record{}))
}
