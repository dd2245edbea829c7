package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventPatternStart EventType = "pattern_start"
	EventPatternEnd   EventType = "pattern_end"
	EventStepStart    EventType = "step_start"
	EventStepEnd      EventType = "step_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	PatternID string    `json:"pattern_id"`
	RequestID string    `json:"request_id"`
}

// PatternEvent marks the start or end of a pattern run.
type PatternEvent struct {
	EventBase
	Status   StepStatus    `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// StepEvent marks the start or end of one step execution.
type StepEvent struct {
	EventBase
	StepIndex   int           `json:"step_index"`
	Capability  string        `json:"capability"`
	RoutedAgent string        `json:"routed_agent,omitempty"`
	Status      StepStatus    `json:"status,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for runtime observability.
// Hooks run inline on the execution path and must be fast.
type LifecycleHooks struct {
	OnPatternStart func(context.Context, *PatternEvent)
	OnPatternEnd   func(context.Context, *PatternEvent)
	OnStepStart    func(context.Context, *StepEvent)
	OnStepEnd      func(context.Context, *StepEvent)
}
