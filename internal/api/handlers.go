package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/journal"
	"github.com/admiral-vulcan/musictolight-core/internal/watchdog"
)

// StatusResponse summarises the show's safety state.
type StatusResponse struct {
	State       string         `json:"state"`
	Since       time.Time      `json:"since"`
	Failures    uint64         `json:"failures"`
	PanicsTotal int            `json:"panics_total"`
	Devices     map[string]int `json:"devices"`
	WSClients   int            `json:"ws_clients"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// DeviceResponse is one device's registry entry plus live state.
type DeviceResponse struct {
	ID           string    `json:"id"`
	Protocol     string    `json:"protocol"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Availability string    `json:"availability"`
	Failures     int       `json:"failures"`
	LastSent     time.Time `json:"last_sent,omitempty"`
}

// JournalEntryResponse is one journal event on the wire.
type JournalEntryResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	DeviceID  string    `json:"device_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PanicRequest carries the optional reason for a manual panic.
type PanicRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, since, failures := s.safety.Status()

	byAvailability := make(map[string]int)
	for _, rec := range s.store.Snapshot() {
		byAvailability[string(rec.Availability)]++
	}

	var panics int
	if s.journal != nil {
		n, err := s.journal.CountByKind(r.Context(), journal.KindPanic)
		if err != nil {
			s.logger.Error("counting panics", "error", err)
		} else {
			panics = n
		}
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		State:       string(state),
		Since:       since,
		Failures:    failures,
		PanicsTotal: panics,
		Devices:     byAvailability,
		WSClients:   s.hub.ClientCount(),
		GeneratedAt: time.Now().UTC(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.store.Snapshot()

	devices := make([]DeviceResponse, 0, s.registry.Count())
	for _, desc := range s.registry.All() {
		rec := snapshot[desc.ID]
		devices = append(devices, DeviceResponse{
			ID:           desc.ID,
			Protocol:     string(desc.Protocol),
			Host:         desc.Host,
			Port:         desc.Port,
			Availability: string(rec.Availability),
			Failures:     rec.Failures,
			LastSent:     rec.LastSent,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "journal unavailable")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	events, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing journal", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read journal")
		return
	}

	entries := make([]JournalEntryResponse, 0, len(events))
	for _, e := range events {
		entries = append(entries, journalEntry(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

// handlePanic is the red button. It accepts an optional JSON reason
// but never fails on a malformed body; the blackout happens regardless.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	reason := "manual panic"
	var req PanicRequest
	if err := decodeJSON(r, &req); err == nil && req.Reason != "" {
		reason = req.Reason
	}

	s.logger.Warn("panic requested via api", "reason", reason, "remote", r.RemoteAddr)
	s.safety.TriggerPanic(r.Context(), reason, "api:"+r.RemoteAddr)

	state, since, _ := s.safety.Status()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"state": string(state),
		"since": since,
	})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request, claims *Claims) {
	actor := claims.Subject
	if actor == "" {
		actor = "operator"
	}

	if err := s.safety.Recover(r.Context(), actor); err != nil {
		if errors.Is(err, watchdog.ErrNotBlackedOut) {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		s.logger.Error("recovery failed", "error", err, "actor", actor)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "recovery failed")
		return
	}

	state, since, _ := s.safety.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"state": string(state),
		"since": since,
	})
}

func journalEntry(e journal.Event) JournalEntryResponse {
	return JournalEntryResponse{
		ID:        e.ID,
		Kind:      string(e.Kind),
		DeviceID:  e.DeviceID,
		Reason:    e.Reason,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
}

// DevicePayload is the availability broadcast shape for the hub.
type DevicePayload struct {
	ID           string `json:"id"`
	Availability string `json:"availability"`
	Failures     int    `json:"failures"`
}

// BroadcastDevice publishes one device's availability on the live feed.
func (s *Server) BroadcastDevice(id string, rec device.Record) {
	s.hub.Broadcast("device", DevicePayload{
		ID:           id,
		Availability: string(rec.Availability),
		Failures:     rec.Failures,
	})
}

// BroadcastTransition publishes a watchdog transition on the live feed.
func (s *Server) BroadcastTransition(t watchdog.Transition) {
	s.hub.Broadcast("transition", map[string]any{
		"from":   string(t.From),
		"to":     string(t.To),
		"reason": t.Reason,
		"actor":  t.Actor,
		"at":     t.At,
	})
}
