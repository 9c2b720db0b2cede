package observability

import (
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	triggerCount   map[string]int64
	errorCount     map[string]int64
	eventCount     map[string]int64
	triggerLatency map[string]time.Duration
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Triggers       map[string]int64  `json:"triggers"`
	Errors         map[string]int64  `json:"errors"`
	Events         map[string]int64  `json:"events"`
	TriggerLatency map[string]string `json:"trigger_latency_total"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		triggerCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		eventCount:     make(map[string]int64),
		triggerLatency: make(map[string]time.Duration),
	}
}

// RecordTrigger counts one handled command, button or wizard message.
func (m *Metrics) RecordTrigger(action string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerCount[action]++
	m.triggerLatency[action] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(action, code string) {
	if m == nil {
		return
	}
	key := action + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvent counts a published lifecycle event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Triggers:       map[string]int64{},
		Errors:         map[string]int64{},
		Events:         map[string]int64{},
		TriggerLatency: map[string]string{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.triggerCount {
		snap.Triggers[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.eventCount {
		snap.Events[k] = v
	}
	for k, v := range m.triggerLatency {
		snap.TriggerLatency[k] = v.String()
	}
	return snap
}
