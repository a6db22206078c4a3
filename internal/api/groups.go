package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-sim/internal/group"
	"github.com/nerrad567/gray-logic-sim/internal/registry"
)

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	ID      int           `json:"id"`
	Members []string      `json:"members"`
	Rules   group.RuleSet `json:"rules"`
}

// groupID parses the {id} URL parameter, writing a 400 on failure.
func groupID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "group id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.sw.Groups(r.Context())
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	snap, err := s.sw.Group(r.Context(), id)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCreateGroup starts a group and adds its initial members.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	spec := registry.GroupSpec{ID: req.ID, Members: req.Members, Rules: req.Rules}
	if err := s.sw.CreateGroup(r.Context(), spec); err != nil {
		s.writeSwitchError(w, err)
		return
	}

	snap, err := s.sw.Group(r.Context(), req.ID)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGroupMode(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req ModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, s.sw.SwitchGroupMode(r.Context(), id, req.Auto))
}

func (s *Server) handleGroupSetpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	s.respond(w, s.sw.SetGroupSetpoint(r.Context(), id, *req.Value))
}

func (s *Server) handleGroupPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req PositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Position == nil {
		writeBadRequest(w, "position is required")
		return
	}
	s.respond(w, s.sw.SetGroupBlindPosition(r.Context(), id, *req.Position))
}

// handleGroupRule sets a rule target. A null value clears the rule.
func (s *Server) handleGroupRule(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sw.UpdateGroupRule(r.Context(), id, chi.URLParam(r, "rule"), req.Value); err != nil {
		s.writeSwitchError(w, err)
		return
	}
	s.writeGroup(w, r, id)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	if err := s.sw.AddToGroup(r.Context(), id, chi.URLParam(r, "deviceID")); err != nil {
		s.writeSwitchError(w, err)
		return
	}
	s.writeGroup(w, r, id)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	if err := s.sw.RemoveFromGroup(r.Context(), id, chi.URLParam(r, "deviceID")); err != nil {
		s.writeSwitchError(w, err)
		return
	}
	s.writeGroup(w, r, id)
}

func (s *Server) writeGroup(w http.ResponseWriter, r *http.Request, id int) {
	snap, err := s.sw.Group(r.Context(), id)
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
