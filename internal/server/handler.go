package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"taskmirror/internal/item"
	"taskmirror/internal/store"
	"taskmirror/internal/syncrun"
)

// statusResponse mirrors GET /api/status.
type statusResponse struct {
	SchedulerRunning bool         `json:"scheduler_running"`
	NextSyncAt       *time.Time   `json:"next_sync_at,omitempty"`
	LastSync         *runResponse `json:"last_sync,omitempty"`
	IntervalMinutes  int          `json:"sync_interval_minutes"`
	RemoteConnected  bool         `json:"remote_connected"`
	LocalConnected   bool         `json:"local_connected"`
}

// settingsPayload is both the GET response and the PUT request body for
// /api/settings.
type settingsPayload struct {
	IntervalMinutes int    `json:"sync_interval_minutes"`
	Direction       string `json:"sync_direction"`
	RemoteListID    string `json:"remote_list_id,omitempty"`
	LocalListID     string `json:"local_list_id,omitempty"`
	RemoteConnected bool   `json:"remote_connected,omitempty"`
	LocalConnected  bool   `json:"local_connected,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	resp := statusResponse{
		SchedulerRunning: s.scheduler.Running(),
		RemoteConnected:  s.remote.IsConnected(ctx),
		LocalConnected:   s.local.IsConnected(ctx),
	}
	if next, ok := s.scheduler.NextRun(); ok {
		resp.NextSyncAt = &next
	}

	interval, err := s.store.GetSettingInt(ctx, store.SettingSyncInterval, s.defaultIntervalMinutes())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.IntervalMinutes = interval

	last, err := s.store.LatestRun(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if last != nil {
		rr := runToResponse(last)
		resp.LastSync = &rr
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSettings(w, r)
	case http.MethodPut:
		s.putSettings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	interval, err := s.store.GetSettingInt(ctx, store.SettingSyncInterval, s.defaultIntervalMinutes())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	direction, err := s.store.GetSetting(ctx, store.SettingDirection, string(item.Bidirectional))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	remoteList, err := s.store.GetSetting(ctx, store.SettingRemoteList, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	localList, err := s.store.GetSetting(ctx, store.SettingLocalList, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, settingsPayload{
		IntervalMinutes: interval,
		Direction:       direction,
		RemoteListID:    remoteList,
		LocalListID:     localList,
		RemoteConnected: s.remote.IsConnected(ctx),
		LocalConnected:  s.local.IsConnected(ctx),
	})
}

// putSettings persists the new settings and restarts the scheduler with the
// new interval, matching the reconfigure-is-stop-plus-start contract.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	if payload.IntervalMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "sync_interval_minutes must be positive")
		return
	}
	if !item.Direction(payload.Direction).Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sync_direction %q", payload.Direction))
		return
	}

	if err := s.store.SetSetting(ctx, store.SettingSyncInterval, strconv.Itoa(payload.IntervalMinutes)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.SetSetting(ctx, store.SettingDirection, payload.Direction); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payload.RemoteListID != "" {
		if err := s.store.SetSetting(ctx, store.SettingRemoteList, payload.RemoteListID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if payload.LocalListID != "" {
		if err := s.store.SetSetting(ctx, store.SettingLocalList, payload.LocalListID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.scheduler.Start(time.Duration(payload.IntervalMinutes) * time.Minute)
	s.notifyScheduler()

	data, err := json.Marshal(payload)
	if err == nil {
		s.Broadcast(Message{Type: MessageTypeSettings, Data: data})
	}

	s.getSettings(w, r)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	direction := item.Direction(r.URL.Query().Get("direction"))
	if direction != "" && !direction.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown direction %q", direction))
		return
	}

	run, err := s.coordinator.TriggerSync(r.Context(), direction)
	if errors.Is(err, syncrun.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runToResponse(run))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runToResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	interval, err := s.store.GetSettingInt(r.Context(), store.SettingSyncInterval, s.defaultIntervalMinutes())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.scheduler.Start(time.Duration(interval) * time.Minute)
	s.notifyScheduler()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "scheduler started",
		"interval_minutes": interval,
	})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.scheduler.Stop()
	s.notifyScheduler()

	writeJSON(w, http.StatusOK, map[string]string{"message": "scheduler stopped"})
}
