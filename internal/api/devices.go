package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
)

// PlugRequest is the body of POST /devices.
type PlugRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// ModeRequest switches a device or group between Auto and Manual.
type ModeRequest struct {
	Auto bool `json:"auto"`
}

// ValueRequest carries a single integer.
type ValueRequest struct {
	Value *int `json:"value"`
}

// PositionRequest moves blinds. Blind 0 means both channels.
type PositionRequest struct {
	Position *int `json:"position"`
	Blind    int  `json:"blind"`
}

// FinRequest turns blind fins. Blind 0 means both channels.
type FinRequest struct {
	Fin   string `json:"fin"`
	Blind int    `json:"blind"`
}

// WindowRequest reports a window state to a blind.
type WindowRequest struct {
	Open bool `json:"open"`
}

// SensorInputsRequest feeds simulated readings to a sensor. Absent fields
// are left alone.
type SensorInputsRequest struct {
	Presence    *bool `json:"presence,omitempty"`
	Brightness  *int  `json:"brightness,omitempty"`
	Temperature *int  `json:"temperature,omitempty"`
}

var accepted = map[string]string{"status": "accepted"}

// decodeBody decodes the request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleListDevices returns all devices with their snapshots.
//
// Query parameters:
//   - kind: filter by kind (led, sensor, blind)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var kind agent.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := agent.ParseKind(k)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		kind = parsed
	}

	devices, err := s.sw.Devices(r.Context(), kind)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.sw.Device(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handlePlugDevice creates and starts a new agent.
func (s *Server) handlePlugDevice(w http.ResponseWriter, r *http.Request) {
	var req PlugRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := agent.ParseKind(req.Kind)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.sw.Plug(r.Context(), kind, req.ID)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "kind": string(kind)})
}

// handleUnplugDevice stops and forgets an agent, including its last
// snapshot on the stream.
func (s *Server) handleUnplugDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, err := s.sw.Device(r.Context(), id)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	if err := s.sw.Unplug(r.Context(), id); err != nil {
		s.writeSwitchError(w, err)
		return
	}
	s.hub.Forget(string(dev.Kind), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, s.sw.SwitchDeviceMode(r.Context(), chi.URLParam(r, "id"), req.Auto))
}

func (s *Server) handleLightBrightness(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	s.respond(w, s.sw.SetLightBrightness(r.Context(), chi.URLParam(r, "id"), *req.Value))
}

func (s *Server) handleBlindPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Position == nil {
		writeBadRequest(w, "position is required")
		return
	}
	s.respond(w, s.sw.SetBlindPosition(r.Context(), chi.URLParam(r, "id"), *req.Position, req.Blind))
}

func (s *Server) handleBlindFin(w http.ResponseWriter, r *http.Request) {
	var req FinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, s.sw.SetBlindFin(r.Context(), chi.URLParam(r, "id"), req.Fin, req.Blind))
}

func (s *Server) handleBlindWindow(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, s.sw.SetBlindWindow(r.Context(), chi.URLParam(r, "id"), req.Open))
}

// handleSensorInputs forwards each present reading to the sensor.
func (s *Server) handleSensorInputs(w http.ResponseWriter, r *http.Request) {
	var req SensorInputsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Presence == nil && req.Brightness == nil && req.Temperature == nil {
		writeBadRequest(w, "at least one of presence, brightness or temperature is required")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if req.Presence != nil {
		if err := s.sw.SetSensorPresence(ctx, id, *req.Presence); err != nil {
			s.writeSwitchError(w, err)
			return
		}
	}
	if req.Brightness != nil {
		if err := s.sw.SetSensorBrightness(ctx, id, *req.Brightness); err != nil {
			s.writeSwitchError(w, err)
			return
		}
	}
	if req.Temperature != nil {
		if err := s.sw.SetSensorTemperature(ctx, id, *req.Temperature); err != nil {
			s.writeSwitchError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// respond writes 202 for a published command or maps its error.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}
