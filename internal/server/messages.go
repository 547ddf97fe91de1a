package server

import (
	"encoding/json"
	"time"

	"taskmirror/internal/store"
)

// MessageType defines the type of broadcast message
type MessageType string

const (
	// MessageTypeRunComplete indicates a sync run finished (success or failed)
	MessageTypeRunComplete MessageType = "run_complete"

	// MessageTypeScheduler indicates the scheduler was started, stopped,
	// or reconfigured
	MessageTypeScheduler MessageType = "scheduler"

	// MessageTypeSettings indicates settings were updated
	MessageTypeSettings MessageType = "settings"
)

// Message represents a broadcast message sent to WebSocket clients
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RunData describes one finished sync run
type RunData struct {
	RunID           int64  `json:"run_id"`
	Status          string `json:"status"`
	Direction       string `json:"direction"`
	TasksSynced     int    `json:"tasks_synced"`
	RemindersSynced int    `json:"reminders_synced"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// SchedulerData describes a scheduler state change
type SchedulerData struct {
	Running         bool       `json:"running"`
	IntervalMinutes int        `json:"interval_minutes,omitempty"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
}

// runResponse is the JSON shape of a sync run on the REST API.
type runResponse struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	Direction       string     `json:"direction"`
	TasksSynced     int        `json:"tasks_synced"`
	RemindersSynced int        `json:"reminders_synced"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func runToResponse(run *store.SyncRun) runResponse {
	return runResponse{
		ID:              run.ID,
		Status:          run.Status,
		Direction:       string(run.Direction),
		TasksSynced:     run.TasksSynced,
		RemindersSynced: run.RemindersSynced,
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}
