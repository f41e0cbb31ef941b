package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"taskpilot/internal/domain/entity"
)

type response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) respondWithSuccess(w http.ResponseWriter, code int, data any) {
	s.respond(w, code, response{Status: "success", Data: data})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respond(w, code, response{Status: "error", Error: message})
}

func (s *Server) respond(w http.ResponseWriter, code int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAddTask accepts one task object, or an array of them.
func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	tasks, err := decodeTasks(body)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid task: %v", err))
		return
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		id, err := s.scheduler.AddTask(r.Context(), t)
		if err != nil {
			s.respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		ids = append(ids, id)
	}
	s.respondWithSuccess(w, http.StatusAccepted, map[string]any{"taskIds": ids})
}

func decodeTasks(body []byte) ([]entity.Task, error) {
	var tasks []entity.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		var single entity.Task
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, err
		}
		tasks = []entity.Task{single}
	}
	if len(tasks) == 0 {
		return nil, errors.New("no tasks")
	}
	for _, t := range tasks {
		if t.Params == nil {
			return nil, fmt.Errorf("unknown task type %q", t.Type)
		}
	}
	return tasks, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.respondWithSuccess(w, http.StatusOK, s.scheduler.Stats())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Start(r.Context())
	s.respondWithSuccess(w, http.StatusOK, s.scheduler.Stats())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.Stop()
	s.respondWithSuccess(w, http.StatusOK, s.scheduler.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.ClearHistory(r.Context()); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithSuccess(w, http.StatusOK, s.scheduler.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.respondWithSuccess(w, http.StatusOK, s.scheduler.History())
}

func (s *Server) withMemory(w http.ResponseWriter) bool {
	if s.memory == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "memory is disabled")
		return false
	}
	return true
}

// handleKnowledge previews what the agent would recall for a task with the
// given description and url.
func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	if !s.withMemory(w) {
		return
	}
	q := r.URL.Query()
	task := entity.NewTask(&entity.AutonomousParams{URL: q.Get("url")})
	task.Description = q.Get("description")

	k, err := s.memory.GetKnowledgeForTask(r.Context(), task)
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithSuccess(w, http.StatusOK, k)
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	if !s.withMemory(w) {
		return
	}
	stats, err := s.memory.GetMemoryStats(r.Context())
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithSuccess(w, http.StatusOK, stats)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if !s.withMemory(w) {
		return
	}
	keep := false
	if v := r.URL.Query().Get("keepSuccessful"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "keepSuccessful must be a boolean")
			return
		}
		keep = b
	}
	if err := s.memory.ClearMemory(r.Context(), keep); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleMemoryStats(w, r)
}

// handleMemoryExport returns the raw memory document, not the envelope, so
// it can be fed back to /memory/import unchanged.
func (s *Server) handleMemoryExport(w http.ResponseWriter, r *http.Request) {
	if !s.withMemory(w) {
		return
	}
	blob, err := s.memory.ExportMemory(r.Context())
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="agent-memory.json"`)
	_, _ = io.WriteString(w, blob)
}

func (s *Server) handleMemoryImport(w http.ResponseWriter, r *http.Request) {
	if !s.withMemory(w) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if !s.memory.ImportMemory(r.Context(), string(body)) {
		s.respondWithError(w, http.StatusBadRequest, "memory import failed")
		return
	}
	s.handleMemoryStats(w, r)
}
