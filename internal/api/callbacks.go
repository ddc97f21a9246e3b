package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

// ResizeRequest is the body of POST /api/v1/callbacks/resize.
type ResizeRequest struct {
	Capacity int `json:"capacity"`
}

// CallbacksResponse lists the callback history, newest first.
type CallbacksResponse struct {
	Count   int           `json:"count"`
	Entries []trace.Entry `json:"entries"`
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.backend.Registration())
}

// handleRegister re-reads the config document and returns the result.
func (s *Server) handleRegister(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.backend.Register())
}

// handleIngest accepts one binary record. Records that are malformed or
// filtered are acknowledged with 204 so producers never retry them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, trace.MaxRecordSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "record exceeds maximum size")
			return
		}
		respondError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}

	if s.backend.Ingest(body) {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCallbacks(w http.ResponseWriter, _ *http.Request) {
	entries := s.backend.Snapshot()
	respondJSON(w, http.StatusOK, CallbacksResponse{
		Count:   len(entries),
		Entries: entries,
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.backend.Resize(req.Capacity) {
		respondError(w, http.StatusBadRequest, "capacity must be greater than zero")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleWatchdog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.backend.WatchdogStatus())
}
