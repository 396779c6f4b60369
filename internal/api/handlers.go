package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/sprite-ai/revq/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Status ---

type statusResponse struct {
	ChangeID     string `json:"change_id"`
	Total        int    `json:"total"`
	Remaining    int    `json:"remaining"`
	PctReviewed  int    `json:"pct_reviewed"`
	FilesTouched int    `json:"files_touched"`
	Skimmed      int    `json:"skimmed"`
	DeepReviewed int    `json:"deep_reviewed"`
	Filtered     int    `json:"filtered"`
	DiveState    string `json:"dive_state,omitempty"`
}

func (s *Server) statusSnapshot() statusResponse {
	q := s.session.Queue()
	bd := q.Breakdown()
	total := q.Total()
	resp := statusResponse{
		ChangeID:     s.session.ChangeID(),
		Total:        total,
		Remaining:    q.Remaining(),
		FilesTouched: len(q.Files()),
		Skimmed:      bd[model.Skimmed],
		DeepReviewed: bd[model.DeepReviewed],
		Filtered:     bd[model.Filtered],
	}
	if total > 0 {
		resp.PctReviewed = (total - resp.Remaining) * 100 / total
	}
	if d := s.session.Dive(); d != nil {
		resp.DiveState = d.State()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.statusSnapshot())
}

// --- Overview ---

type overviewResponse struct {
	Files []fileStatusJSON `json:"files"`
}

type fileStatusJSON struct {
	Path     string `json:"path"`
	Lines    int    `json:"lines"`
	Reviewed int    `json:"reviewed"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := s.session.Queue()
	files := q.Files()
	sort.Strings(files)

	resp := overviewResponse{Files: []fileStatusJSON{}}
	for _, path := range files {
		ids := q.ByFile(path)
		done := 0
		for _, id := range ids {
			if st, ok := q.Status(id); ok && st.Terminal() {
				done++
			}
		}
		resp.Files = append(resp.Files, fileStatusJSON{Path: path, Lines: len(ids), Reviewed: done})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Groups ---

type groupsResponse struct {
	Scheme string      `json:"scheme"`
	Groups []groupJSON `json:"groups"`
}

type groupJSON struct {
	Label  string  `json:"label"`
	Lines  int     `json:"lines"`
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	scheme := r.URL.Query().Get("scheme")
	if scheme == "" {
		scheme = s.session.ActiveScheme()
	}

	g, err := s.session.Grouping(scheme)
	if err != nil {
		var stale *model.StaleGroupingError
		if errors.As(err, &stale) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	q := s.session.Queue()
	resp := groupsResponse{Scheme: scheme, Groups: []groupJSON{}}
	for _, sg := range s.session.Scorer().Rank(s.session.DiffSet(), g) {
		resp.Groups = append(resp.Groups, groupJSON{
			Label:  sg.Group.Label,
			Lines:  len(sg.Group.Members),
			Score:  sg.Score,
			Status: q.AggregateStatus(sg.Group).String(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
