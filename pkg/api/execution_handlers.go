package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/tcmartin/flowexec/pkg/graph"
	"github.com/tcmartin/flowexec/pkg/models"
	"github.com/tcmartin/flowexec/pkg/runtime"
	"github.com/tcmartin/flowexec/pkg/storage"
)

// executeFlowRequest is the body of POST /executeFlow.
type executeFlowRequest struct {
	FlowID  string        `json:"flowId"`
	Nodes   []models.Node `json:"nodes"`
	Edges   []models.Edge `json:"edges"`
	Context struct {
		Priority       string                 `json:"priority,omitempty"`
		TimeoutSeconds int                    `json:"timeout_seconds,omitempty"`
		Input          map[string]interface{} `json:"input,omitempty"`
	} `json:"context"`
}

// handleExecuteFlow validates the submitted graph and starts an
// asynchronous run, answering before any node executes.
func (s *Server) handleExecuteFlow(w http.ResponseWriter, r *http.Request) {
	var req executeFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.FlowID == "" {
		http.Error(w, "flowId is required", http.StatusBadRequest)
		return
	}

	g := models.Graph{Nodes: req.Nodes, Edges: req.Edges}
	runCtx := models.RunContext{
		TriggerType: models.TriggerManual,
		Priority:    req.Context.Priority,
		Timeout:     time.Duration(req.Context.TimeoutSeconds) * time.Second,
		Input:       req.Context.Input,
	}

	executionID, err := s.engine.Start(g, req.FlowID, runCtx)
	if err != nil {
		var verr *graph.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Remember the graph so triggers registered for this workflow can
	// start it later.
	s.graphs.Put(req.FlowID, g)

	run, err := s.engine.Status(executionID)
	if err != nil {
		http.Error(w, "Failed to read execution status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"executionId": executionID,
		"status":      run.Status,
		"message":     "Workflow execution started",
		"startTime":   run.StartTime.Format(time.RFC3339Nano),
	})
}

// handleGetExecution returns the full run snapshot.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["executionId"]

	run, err := s.engine.Status(executionID)
	if err != nil {
		if errors.Is(err, runtime.ErrRunNotFound) {
			http.Error(w, "Execution not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleCancelExecution requests cooperative cancellation.
func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["executionId"]

	writeJSON(w, http.StatusOK, map[string]bool{
		"success": s.engine.Cancel(executionID),
	})
}

// handleHistory returns terminal run summaries, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["flowId"]

	query := storage.HistoryQuery{
		Filter: r.URL.Query().Get("filter"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		query.Offset = offset
	}

	entries, err := s.engine.History(flowID, query)
	if err != nil {
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}
