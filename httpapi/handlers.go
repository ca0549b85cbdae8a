package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webkin/webkin/calibration"
	"github.com/webkin/webkin/coordinator"
	"github.com/webkin/webkin/kinematictree"
)

type statusResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{OK: false, Error: msg})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, statusResponse{OK: true})
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	doc := s.coord.CurrentTreeDoc()
	if doc == nil {
		writeError(w, http.StatusOK, "no tree loaded")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePostTree(w http.ResponseWriter, r *http.Request) {
	var doc kinematictree.NodeDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "malformed tree document")
		return
	}
	if err := s.coord.LoadTree(&doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.SceneSnapshot())
}

func (s *Server) handlePostJoints(w http.ResponseWriter, r *http.Request) {
	var joints map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&joints); err != nil {
		writeError(w, http.StatusBadRequest, "malformed joints body")
		return
	}
	s.coord.SetJoints(joints)
	writeOK(w)
}

type jointNameBody struct {
	JointName string `json:"joint_name"`
}

func (s *Server) handleSetZero(w http.ResponseWriter, r *http.Request) {
	var body jointNameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JointName == "" {
		writeError(w, http.StatusBadRequest, "missing joint_name")
		return
	}
	if err := s.coord.SetZero(body.JointName); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeOK(w)
}

type axisOverrideBody struct {
	JointName  string   `json:"joint_name"`
	AxisOffset *float64 `json:"axis_offset,omitempty"`
	AxisScale  *float64 `json:"axis_scale,omitempty"`
	SliderMin  *float64 `json:"slider_min,omitempty"`
	SliderMax  *float64 `json:"slider_max,omitempty"`
}

func (s *Server) handleAxisOverride(w http.ResponseWriter, r *http.Request) {
	var body axisOverrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JointName == "" {
		writeError(w, http.StatusBadRequest, "missing joint_name")
		return
	}
	ov := calibration.Override{
		AxisOffset: body.AxisOffset,
		AxisScale:  body.AxisScale,
		SliderMin:  body.SliderMin,
		SliderMax:  body.SliderMax,
	}
	if err := s.coord.SetOverride(body.JointName, ov); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleGetOverrides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"overrides": s.coord.Overrides()})
}

func (s *Server) handleClearAllOverrides(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.ClearAllOverrides(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleClearOneOverride(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.coord.ClearOverride(name); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) writeCoordinatorError(w http.ResponseWriter, err error) {
	if err == coordinator.ErrUnknownJoint {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
