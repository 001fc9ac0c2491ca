package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/icare0/Do-it-repo-sub000/internal/planner"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

const maxBodyBytes = 1 << 20

type tasksRequest struct {
	Tasks []types.Task `json:"tasks"`
}

type analyzeRequest struct {
	Tasks   []types.Task    `json:"tasks"`
	Options planner.Options `json:"options"`
}

type slotRequest struct {
	Task  types.Task   `json:"task"`
	Tasks []types.Task `json:"tasks"`
}

type routeRequest struct {
	Waypoints []geo.Point `json:"waypoints"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	tasks, ok := s.resolveTasks(w, r, req.Tasks)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.planner.AnalyzeAndOptimize(r.Context(), tasks, req.Options))
}

func (s *Server) optimizeRoutes(w http.ResponseWriter, r *http.Request) {
	var req tasksRequest
	if !s.decode(w, r, &req) {
		return
	}
	tasks, ok := s.resolveTasks(w, r, req.Tasks)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, tasksRequest{Tasks: s.planner.OptimizeRoutes(r.Context(), tasks)})
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Waypoints) < 2 {
		writeError(w, http.StatusBadRequest, errors.New("at least two waypoints are required"))
		return
	}

	writeJSON(w, http.StatusOK, s.planner.Route(r.Context(), req.Waypoints))
}

func (s *Server) bestSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Task.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("task id is required"))
		return
	}
	tasks, ok := s.resolveTasks(w, r, req.Tasks)
	if !ok {
		return
	}

	slot := s.planner.FindBestTimeSlot(r.Context(), req.Task, tasks)
	if slot == nil {
		writeError(w, http.StatusNotFound, errors.New("no free slot left today"))
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) patterns(w http.ResponseWriter, _ *http.Request) {
	patterns := s.planner.Patterns()
	if patterns == nil {
		patterns = []types.UserPattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) templates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Templates())
}

func (s *Server) refreshContext(w http.ResponseWriter, r *http.Request) {
	tasks, ok := s.resolveTasks(w, r, nil)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.planner.RefreshContext(r.Context(), tasks))
}

func (s *Server) invalidateContext(w http.ResponseWriter, _ *http.Request) {
	s.planner.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recommendationFeedback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var err error
	switch vars["action"] {
	case "dismiss":
		err = s.planner.Dismiss(r.Context(), id)
	case "acted":
		err = s.planner.MarkActed(r.Context(), id)
	case "viewed":
		s.planner.MarkViewed(id)
	}
	if err != nil {
		s.logger.Error("Failed to record recommendation feedback",
			"recommendation_id", id,
			"action", vars["action"],
			"error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveTasks returns the request's tasks, or the source's when none were sent
func (s *Server) resolveTasks(w http.ResponseWriter, r *http.Request, tasks []types.Task) ([]types.Task, bool) {
	if tasks != nil {
		return tasks, true
	}
	if s.tasks == nil {
		return nil, true
	}

	loaded, err := s.tasks.Tasks(r.Context())
	if err != nil {
		s.logger.Error("Failed to load tasks", "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to load tasks: %w", err))
		return nil, false
	}
	return loaded, true
}

// decode reads an optional JSON body into v; an empty body leaves v untouched
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
