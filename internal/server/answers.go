package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/pipeline"
)

const (
	defaultListLimit = 20
	defaultURLTTL    = 15 * time.Minute
	maxURLTTL        = 24 * time.Hour
)

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	Response *pipeline.Answer `json:"response"`
	SQL      string           `json:"sql"`
	ID       string           `json:"id"`
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) (*pipeline.Trace, bool) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "query must not be empty"))
		return nil, false
	}
	trace, err := s.deps.Answerer.Run(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return trace, true
}

// handleGenerateAnswer keeps the string-encoded payload the chat front end
// parses with JSON.parse.
func (s *Server) handleGenerateAnswer(w http.ResponseWriter, r *http.Request) {
	trace, ok := s.runPipeline(w, r)
	if !ok {
		return
	}
	payload, err := json.Marshal(trace.Answer)
	if err != nil {
		writeError(w, r, errs.Wrap(errs.ErrKindUnknown, "encode answer", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": string(payload)})
}

func (s *Server) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	trace, ok := s.runPipeline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Response: trace.Answer, SQL: trace.SQL, ID: trace.ID})
}

func (s *Server) transcripts(w http.ResponseWriter, r *http.Request) (Transcripts, bool) {
	if s.deps.Transcripts == nil {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "answer archive is disabled"))
		return nil, false
	}
	return s.deps.Transcripts, true
}

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.transcripts(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := tr.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.transcripts(w, r)
	if !ok {
		return
	}
	trace, err := tr.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleAnswerURL(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.transcripts(w, r)
	if !ok {
		return
	}
	ttl := defaultURLTTL
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxURLTTL {
			writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "ttl must be a duration between 1s and %s", maxURLTTL))
			return
		}
		ttl = d
	}
	url, err := tr.URL(r.Context(), chi.URLParam(r, "id"), ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "expires_in": ttl.String()})
}
