package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ProgressEvent is one frame of the progress stream.
type ProgressEvent struct {
	JobID    string           `json:"job_id"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Message  string           `json:"message"`
}

// handleEvents streams progress updates for one job over a WebSocket.
// A frame is sent on every observed change; the stream closes once the
// job reaches a terminal state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := models.ValidateJobID(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if _, err := s.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
		} else {
			writeError(w, http.StatusInternalServerError, "reading job failed")
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last models.JobState
	first := true
	for {
		state, err := s.store.Get(r.Context(), id)
		if err != nil {
			return
		}
		if first || state != last {
			event := ProgressEvent{
				JobID:    id,
				Status:   state.Status,
				Progress: state.Progress,
				Message:  state.Message,
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			last = state
			first = false
		}
		if state.Status.Terminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(state.Status)))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
