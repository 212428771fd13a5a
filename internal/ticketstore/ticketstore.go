//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ticketstore hands pipeline outcomes to the external ticket store.
package ticketstore

import (
	"context"
	"sync"
	"time"
)

// Record is the outcome of one ticket as persisted by the ticket store.
type Record struct {
	TraceID          string     `json:"trace_id"`
	TicketID         string     `json:"ticket_id,omitempty"`
	Status           string     `json:"status"`
	Category         string     `json:"category,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	Keywords         []string   `json:"keywords,omitempty"`
	Escalated        bool       `json:"escalated"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
	TargetDepartment string     `json:"target_department,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	FinalResponse    string     `json:"final_response,omitempty"`
	Confidence       float64    `json:"confidence"`
	SensitiveData    bool       `json:"sensitive_data"`
	Rating           int        `json:"rating,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Key identifies the ticket a record belongs to: the ticket id when the
// record has one, the trace id otherwise.
func (r Record) Key() string {
	if r.TicketID != "" {
		return r.TicketID
	}
	return r.TraceID
}

// Sink receives outcome records.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// NopSink discards records.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(context.Context, Record) error { return nil }

// Close implements Sink.
func (NopSink) Close() error { return nil }

// MemorySink keeps published records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// Publish implements Sink.
func (m *MemorySink) Publish(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error { return nil }

// Records returns a copy of the published records.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

var (
	_ Sink = NopSink{}
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*KafkaSink)(nil)
)
