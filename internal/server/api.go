package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/render"
	"github.com/soar/padview/internal/skin"
)

// onLoop runs fn on the frame loop, bounded by the request's context.
func (s *Server) onLoop(r *http.Request, fn func()) error {
	if err := s.Loop.Do(r.Context(), fn); err != nil {
		return unavailable(errors.Wrap(err, "frame loop busy"))
	}
	return nil
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	reply(w, s.Mappings.Records(), nil)
}

func (s *Server) getMapping(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	rec, ok := s.Mappings.Get(key)
	if !ok {
		reply(w, nil, notFound(errors.Errorf("no mapping %q", key)))
		return
	}
	reply(w, rec, nil)
}

func (s *Server) putMapping(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var rec mapping.Record
	if err := decode(w, r, &rec); err != nil {
		reply(w, nil, err)
		return
	}
	if err := s.Mappings.Set(key, rec); err != nil {
		reply(w, nil, badRequest(err))
		return
	}
	// joystick capability and layout may have changed
	reply(w, rec, s.onLoop(r, s.Renderer.ReassignAll))
}

func (s *Server) deleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.Mappings.Delete(mux.Vars(r)["key"]); err != nil {
		reply(w, nil, badRequest(err))
		return
	}
	reply(w, true, s.onLoop(r, s.Renderer.ReassignAll))
}

func (s *Server) resetMappings(w http.ResponseWriter, r *http.Request) {
	if err := s.Mappings.Reset(); err != nil {
		reply(w, nil, err)
		return
	}
	reply(w, s.Mappings.Records(), s.onLoop(r, s.Renderer.ReassignAll))
}

type skinList struct {
	Skins       []string          `json:"skins"`
	Assignments map[string]string `json:"assignments"`
}

func (s *Server) listSkins(w http.ResponseWriter, r *http.Request) {
	names, err := s.Skins.List()
	if err != nil {
		reply(w, nil, err)
		return
	}
	reply(w, skinList{Skins: names, Assignments: s.Assignments.All()}, nil)
}

type skinAssignment struct {
	Skin string `json:"skin"`
}

func (s *Server) assignSkin(w http.ResponseWriter, r *http.Request) {
	fingerprint := mux.Vars(r)["fingerprint"]
	var req skinAssignment
	if err := decode(w, r, &req); err != nil {
		reply(w, nil, err)
		return
	}
	if err := s.Assignments.Set(fingerprint, req.Skin); err != nil {
		if errors.Is(err, skin.ErrInvalidName) {
			err = badRequest(err)
		}
		reply(w, nil, err)
		return
	}
	reply(w, req, s.onLoop(r, func() { s.Renderer.Reassign(fingerprint) }))
}

func (s *Server) getFade(w http.ResponseWriter, r *http.Request) {
	reply(w, render.LoadFadeOptions(s.Settings, diag.Discard), nil)
}

func (s *Server) putFade(w http.ResponseWriter, r *http.Request) {
	var o render.FadeOptions
	if err := decode(w, r, &o); err != nil {
		reply(w, nil, err)
		return
	}
	if err := o.Validate(); err != nil {
		reply(w, nil, badRequest(err))
		return
	}
	if err := render.SaveFadeOptions(s.Settings, o); err != nil {
		reply(w, nil, err)
		return
	}
	f := render.NewFade(o)
	reply(w, o, s.onLoop(r, func() { s.Renderer.SetFade(f) }))
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	var status [gamepad.Slots]render.Status
	if err := s.onLoop(r, func() { status = s.Renderer.Status() }); err != nil {
		reply(w, nil, err)
		return
	}
	reply(w, status, nil)
}
