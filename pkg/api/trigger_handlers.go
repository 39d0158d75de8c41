package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tcmartin/flowexec/pkg/models"
	"github.com/tcmartin/flowexec/pkg/triggers"
)

// handleRegisterSchedule creates a schedule trigger for a workflow.
func (s *Server) handleRegisterSchedule(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["flowId"]

	var cfg models.ScheduleTrigger
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trigger, err := s.manager.RegisterSchedule(flowID, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, trigger)
}

// handleRegisterWebhook creates a webhook trigger. The response carries
// the assigned URL and secret; the secret is not retrievable later.
func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["flowId"]

	var cfg models.WebhookTrigger
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trigger, err := s.manager.RegisterWebhook(flowID, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, trigger)
}

// handleRegisterEventTrigger creates an event trigger.
func (s *Server) handleRegisterEventTrigger(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["flowId"]

	var cfg models.EventTrigger
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trigger, err := s.manager.RegisterEvent(flowID, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, trigger)
}

// handleListTriggers returns every trigger registered for a workflow.
func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	flowID := mux.Vars(r)["flowId"]
	writeJSON(w, http.StatusOK, s.manager.List(flowID))
}

// handleRemoveTrigger deletes a trigger of any kind.
func (s *Server) handleRemoveTrigger(w http.ResponseWriter, r *http.Request) {
	triggerID := mux.Vars(r)["triggerId"]

	if !s.manager.Remove(triggerID) {
		http.Error(w, "Trigger not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInboundWebhook fires a registered webhook trigger. The secret
// comes from the X-Webhook-Secret header or the secret query parameter.
func (s *Server) handleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	triggerID := mux.Vars(r)["triggerId"]

	secret := r.Header.Get("X-Webhook-Secret")
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}

	executionID, err := s.manager.HandleWebhook(triggerID, r.Method, secret)
	if err != nil {
		switch {
		case errors.Is(err, triggers.ErrTriggerNotFound):
			http.Error(w, "Trigger not found", http.StatusNotFound)
		case errors.Is(err, triggers.ErrSecretMismatch):
			http.Error(w, "Invalid webhook secret", http.StatusUnauthorized)
		case errors.Is(err, triggers.ErrMethodMismatch):
			http.Error(w, "Method not allowed for this webhook", http.StatusMethodNotAllowed)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"executionId": executionID,
	})
}

// handlePublishEvent publishes onto the internal event bus. Delivery to
// event triggers is asynchronous.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var evt models.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if evt.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}

	s.bus.Publish(evt)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}
