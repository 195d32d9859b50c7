// Package turn exposes the conversation API: start a session, send one
// utterance, read the session back.
package turn

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orderline/orderline/internal/engine"
	"github.com/orderline/orderline/internal/session"
	"github.com/orderline/orderline/pkg/cerr"
)

type Server struct {
	engine   *engine.Engine
	sessions session.Repository
}

func NewServer(e *engine.Engine, sessions session.Repository) *Server {
	return &Server{engine: e, sessions: sessions}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", s.createSession)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{sessionID}", s.getSession)
	r.Post("/sessions/{sessionID}/turns", s.createTurn)
	r.Post("/sessions/{sessionID}/reset", s.resetSession)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, greeting, err := s.engine.StartSession(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, sessionResponse{SessionID: sess.ID, Reply: greeting})
}

type turnRequest struct {
	Utterance string `json:"utterance"`
}

func (s *Server) createTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "utterance is required", nil)
		return
	}

	result, err := s.engine.Turn(ctx, sessionID, req.Utterance)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, result)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := s.engine.ResetSession(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, result)
}

type sessionDetail struct {
	SessionID  string             `json:"session_id"`
	Closed     bool               `json:"closed"`
	Summary    string             `json:"summary"`
	Total      float64            `json:"total,omitempty"`
	OrderNum   string             `json:"order_number,omitempty"`
	Transcript []session.Exchange `json:"transcript,omitempty"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.engine.GetSession(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toDetail(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, total, err := s.sessions.List(ctx, 100, 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	details := make([]sessionDetail, 0, len(sessions))
	for _, sess := range sessions {
		details = append(details, toDetail(sess))
	}
	cerr.SetJSONResponse(ctx, map[string]any{"sessions": details, "total": total})
}

func toDetail(sess *session.Session) sessionDetail {
	d := sessionDetail{
		SessionID:  sess.ID,
		Closed:     sess.Closed,
		Transcript: sess.Transcript,
	}
	if sess.Tree != nil {
		d.Summary = sess.Tree.Summary()
		d.Total = sess.Tree.Checkout.Total
		d.OrderNum = sess.Tree.Checkout.OrderNumber
	}
	return d
}
