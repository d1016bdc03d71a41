package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/planner"
	"github.com/sheetchat/sheetchat/internal/render"
	"github.com/sheetchat/sheetchat/internal/session"
	"github.com/sheetchat/sheetchat/internal/table"
)

type uploadResponse struct {
	SessionID string       `json:"session_id"`
	Table     *table.Table `json:"table"`
}

type askRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// handleUpload accepts a multipart spreadsheet upload, loads it, registers
// the dataset, and starts a fresh session. An existing session is destroyed
// first so table and transcript always travel together.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Server.MaxUploadMB)<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest,
			scerrors.Wrap(err, scerrors.ErrTypeValidation, "missing file upload"))

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest,
			scerrors.Wrap(err, scerrors.ErrTypeLoad, "failed to read upload"))

		return
	}

	tbl, err := s.loader.Load(header.Filename, data)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)

		return
	}

	datasetID, err := s.store.Register(r.Context(), tbl)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)

		return
	}

	// Rows live in the dataset store now; no need to keep a second copy.
	tbl.Rows = nil

	if old := s.sessionID(r); old != "" {
		s.sessions.Destroy(old)
	}

	sess := s.sessions.Create(tbl, datasetID)
	if err := s.setSessionID(w, r, sess.ID); err != nil {
		s.logger.WithError(err).Warn("failed to save session cookie")
	}

	s.logger.WithFields(map[string]interface{}{
		"file":    header.Filename,
		"rows":    tbl.RowCount,
		"columns": len(tbl.Columns),
	}).Info("table loaded")

	s.writeJSON(w, http.StatusOK, uploadResponse{SessionID: sess.ID, Table: tbl})
}

// handleAsk answers one question against the session's table.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest,
			scerrors.Wrap(err, scerrors.ErrTypeValidation, "invalid request body"))

		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest,
			scerrors.New(scerrors.ErrTypeValidation, "question is required"))

		return
	}

	sess.AppendUser(question)

	resp := s.answer(r, sess, question)
	sess.AppendResponse(resp)

	s.writeJSON(w, http.StatusOK, resp)
}

// answer plans and renders one question. A failed model plan is retried once
// with the rule-based planner before giving up; the final failure becomes a
// text entry so the transcript records it.
func (s *Server) answer(r *http.Request, sess *session.Session, question string) *render.Response {
	ctx := r.Context()

	result, err := s.plan(r, question, sess)
	if err != nil {
		return render.ErrorResponse(err)
	}

	resp, err := s.renderer.Render(ctx, result, sess.Table, sess.DatasetID)
	if err == nil {
		return resp
	}

	s.logger.WithError(err).Warn("failed to render plan")

	if result.Source == "model" {
		retry, rerr := planner.NewFallbackService().Plan(ctx, question, sess.Table)
		if rerr == nil {
			if resp, rerr = s.renderer.Render(ctx, retry, sess.Table, sess.DatasetID); rerr == nil {
				return resp
			}
		}
	}

	return render.ErrorResponse(err)
}

func (s *Server) plan(r *http.Request, question string, sess *session.Session) (*plan.Result, error) {
	if s.planner == nil {
		return planner.NewFallbackService().Plan(r.Context(), question, sess.Table)
	}

	return s.planner.Plan(r.Context(), question, sess.Table)
}

// quick actions map to fixed descriptors
var quickActions = map[string]plan.Kind{
	"dashboard": plan.KindDashboard,
	"charts":    plan.KindMultiChart,
	"summary":   plan.KindStats,
	"overview":  plan.KindAnswer,
	"sample":    plan.KindTable,
}

// handleAction runs one of the canned one-click analyses.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")

	kind, ok := quickActions[name]
	if !ok {
		s.writeError(w, http.StatusNotFound,
			scerrors.Newf(scerrors.ErrTypeValidation, "unknown action: %s", name))

		return
	}

	result := &plan.Result{Kind: kind, Source: "rules"}

	switch kind {
	case plan.KindStats:
		for _, c := range sess.Table.ColumnsOfType(table.TypeNumeric) {
			result.Columns = append(result.Columns, c.Name)
		}

		if len(result.Columns) == 0 {
			result = &plan.Result{
				Kind:   plan.KindAnswer,
				Answer: "This table has no numeric columns to summarize.",
				Source: "rules",
			}
		}
	case plan.KindMultiChart:
		for _, c := range sess.Table.ColumnsOfType(table.TypeNumeric) {
			if len(result.Charts) == 5 {
				break
			}

			result.Charts = append(result.Charts, plan.ChartSpec{Type: plan.ChartHistogram, X: c.Name})
		}

		// No numeric columns: the dashboard path still yields a panel.
		if len(result.Charts) == 0 {
			result = &plan.Result{Kind: plan.KindDashboard, Source: "rules"}
		}
	case plan.KindAnswer:
		// Built from profiles alone, so it always succeeds.
		result.Answer = sess.Table.SchemaContext()
	case plan.KindTable:
		result.Limit = 10
	}

	sess.AppendUser("[" + name + "]")

	resp, err := s.renderer.Render(r.Context(), result, sess.Table, sess.DatasetID)
	if err != nil {
		resp = render.ErrorResponse(err)
	}

	sess.AppendResponse(resp)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleTranscript returns the conversation so far.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": sess.Transcript(),
	})
}

// handleOverview returns the table's schema and profiles.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, sess.Table)
}

// handleReset destroys the session, its dataset, and its transcript.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if id := s.sessionID(r); id != "" {
		s.sessions.Destroy(id)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// requireSession resolves the request's session or writes a 404.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := s.sessionID(r)
	if id == "" {
		s.writeError(w, http.StatusNotFound,
			scerrors.New(scerrors.ErrTypeValidation, "no active session").
				WithSuggestion("Upload a spreadsheet to start a new conversation"))

		return nil, false
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)

		return nil, false
	}

	return sess, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}

	var scErr *scerrors.Error
	if errors.As(err, &scErr) {
		resp.Error = scErr.Message
		resp.Suggestions = scErr.Suggestions
	}

	s.writeJSON(w, status, resp)
}
