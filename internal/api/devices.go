package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/heatpump-sync/internal/bridges/heatpump"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// sourceAPI marks writes received over the REST API.
const sourceAPI = "api"

// writeRequest is the body of the parameter and attribute write endpoints.
type writeRequest struct {
	Value any  `json:"value"`
	Wait  bool `json:"wait"`
}

// reconcileRequest is the body of POST /devices/{id}/reconcile.
type reconcileRequest struct {
	Parameters []int `json:"parameters"`
}

// reconcileResponse reports one reconcile pass.
type reconcileResponse struct {
	Requested int      `json:"requested"`
	Returned  int      `json:"returned"`
	Updated   []string `json:"updated"`
	Removed   []string `json:"removed"`
	Unknown   []int    `json:"unknown,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	NotFound  bool     `json:"not_found,omitempty"`
	Setpoint  string   `json:"setpoint_mode,omitempty"`
}

// sessionFor resolves the {id} URL parameter, writing a 404 when unknown.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*heatpump.Session, bool) {
	sess, err := s.bridge.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return nil, false
	}
	return sess, true
}

// parameterParam parses a positive parameter identifier from the URL.
func parameterParam(r *http.Request) (parameter.ID, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "param"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return parameter.ID(n), true
}

// handleListDevices returns the status of every configured device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	sessions := s.bridge.Sessions()
	devices := make([]heatpump.SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		devices = append(devices, sess.Status())
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device's status and attributes.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     sess.Status(),
		"attributes": sess.Attributes().Snapshot(),
	})
}

// handleGetAttributes returns a device's attribute snapshot.
func (s *Server) handleGetAttributes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Attributes().Snapshot())
}

// handleWriteParameter queues a raw parameter write.
//
// Without "wait" the response is 202 with the request ID as soon as the write
// is queued. With "wait" the handler blocks until the write settles.
func (s *Server) handleWriteParameter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	id, ok := parameterParam(r)
	if !ok {
		writeBadRequest(w, "parameter must be a positive integer")
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	value, err := heatpump.ToFloat(req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h, err := sess.SubmitWrite(id, value, sourceAPI)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	body := map[string]any{
		"request_id":   h.ID(),
		"parameter_id": int(id),
		"value":        value,
	}
	if !req.Wait {
		body["status"] = "queued"
		writeJSON(w, http.StatusAccepted, body)
		return
	}

	if err := h.Wait(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	body["status"] = "applied"
	writeJSON(w, http.StatusOK, body)
}

// handleWriteAttribute writes a user-writable attribute and waits for the outcome.
func (s *Server) handleWriteAttribute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if _, ok := sess.WritableParameter(name); !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "attribute is not writable: "+name)
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := sess.WriteAttribute(r.Context(), name, req.Value, sourceAPI); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attribute": name,
		"value":     req.Value,
		"status":    "applied",
	})
}

// handleReconcile polls the given parameters, or the full monitored list when
// none are given, and applies the result.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	ids := make([]parameter.ID, 0, len(req.Parameters))
	for _, n := range req.Parameters {
		if n <= 0 {
			writeBadRequest(w, "parameters must be positive integers")
			return
		}
		ids = append(ids, parameter.ID(n))
	}

	res, err := sess.Reconcile(r.Context(), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := reconcileResponse{
		Requested: res.Requested,
		Returned:  res.Returned,
		Updated:   res.Updated,
		Removed:   res.Removed,
		NotFound:  res.NotFound,
		Setpoint:  string(res.Setpoint),
	}
	for _, id := range res.Unknown {
		resp.Unknown = append(resp.Unknown, int(id))
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetEnumOptions returns the cached options of an enum parameter.
func (s *Server) handleGetEnumOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	id, ok := parameterParam(r)
	if !ok {
		writeBadRequest(w, "parameter must be a positive integer")
		return
	}

	options, err := sess.EnumOptions(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parameter_id": int(id),
		"options":      options,
	})
}
