package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lhartmann/scribeq/internal/dispatch"
	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/queue"
	"github.com/lhartmann/scribeq/internal/router"
	"github.com/lhartmann/scribeq/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := s.dispatcher.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrNoHealthyQueue):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, queue.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

type jobResponse struct {
	JobID string `json:"job_id"`
	models.JobState
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{JobID: id, JobState: state})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNoResult) {
			writeError(w, http.StatusNotFound, "no result for job")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing jobs failed")
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for id, state := range jobs {
		out = append(out, jobResponse{JobID: id, JobState: state})
	}
	writeJSON(w, http.StatusOK, out)
}

type healthResponse struct {
	Status string             `json:"status"`
	Queues router.QueueHealth `json:"queues"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.broker.Health()
	status := "degraded"
	for _, live := range health {
		if live {
			status = "ok"
			break
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Queues: health})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
