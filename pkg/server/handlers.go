package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearlane/bounty/pkg/escrow"
	"github.com/clearlane/bounty/pkg/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type bountyResponse struct {
	Fingerprint    string    `json:"fingerprint"`
	Funder         string    `json:"funder"`
	Expires        time.Time `json:"expires"`
	Reward         uint64    `json:"reward"`
	IsSubmitted    bool      `json:"is_submitted"`
	IsAccomplished bool      `json:"is_accomplished"`
}

func toBountyResponse(b escrow.Bounty) bountyResponse {
	return bountyResponse{
		Fingerprint:    b.Fingerprint.String(),
		Funder:         string(b.Funder),
		Expires:        b.Expires.UTC(),
		Reward:         b.Reward,
		IsSubmitted:    b.Submitted,
		IsAccomplished: b.Accomplished,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to encode response", "error", err)
	}
}

// writeError maps the escrow error taxonomy onto HTTP statuses. Validation
// errors are the caller's fault; Locked is retryable; a transfer failure means
// the settlement rolled back upstream of us.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, escrow.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, escrow.ErrNotFunder),
		errors.Is(err, escrow.ErrNotOwner),
		errors.Is(err, escrow.ErrNotApplicant),
		errors.Is(err, escrow.ErrSelfApplication),
		errors.Is(err, escrow.ErrWinnerNotApplicant):
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrAlreadyExists),
		errors.Is(err, escrow.ErrAlreadyApplied),
		errors.Is(err, escrow.ErrAlreadyAccomplished):
		status = http.StatusConflict
	case errors.Is(err, escrow.ErrZeroDeposit),
		errors.Is(err, escrow.ErrExpired),
		errors.Is(err, escrow.ErrStaleTerms),
		errors.Is(err, escrow.ErrNoSubmission),
		errors.Is(err, escrow.ErrInvalidRate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInsufficientCustody):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// caller extracts the opaque caller identity from the X-Caller header.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (escrow.Identity, bool) {
	id := r.Header.Get("X-Caller")
	if id == "" {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-Caller header"})
		return "", false
	}
	return escrow.Identity(id), true
}

func (s *Server) fingerprint(w http.ResponseWriter, r *http.Request) (escrow.Fingerprint, bool) {
	fp, err := escrow.ParseFingerprint(chi.URLParam(r, "fingerprint"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return escrow.Fingerprint{}, false
	}
	return fp, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.VersionInfo)
}

func (s *Server) handleCreateBounty(w http.ResponseWriter, r *http.Request) {
	funder, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string    `json:"content"`
		Expires time.Time `json:"expires"`
		Amount  uint64    `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content is required"})
		return
	}

	b, err := s.cfg.Core.Registry.Create(r.Context(), req.Content, funder, req.Expires, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toBountyResponse(b))
}

func (s *Server) handleGetBounty(w http.ResponseWriter, r *http.Request) {
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	b, err := s.cfg.Core.Registry.Get(fp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toBountyResponse(b))
}

func (s *Server) handleGetApplicants(w http.ResponseWriter, r *http.Request) {
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	if _, err := s.cfg.Core.Registry.Get(fp); err != nil {
		s.writeError(w, err)
		return
	}
	members := s.cfg.Core.Applications.Members(fp)
	applicants := make([]string, len(members))
	for i, m := range members {
		applicants[i] = string(m)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"applicants": applicants})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	applicant, ok := s.caller(w, r)
	if !ok {
		return
	}
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	var req struct {
		Expires time.Time `json:"expires"`
		Reward  uint64    `json:"reward"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.cfg.Core.Applications.Apply(r.Context(), fp, applicant, req.Expires, req.Reward); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Core.Submissions.Submit(r.Context(), fp, caller); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	var req struct {
		Winner string `json:"winner"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Winner == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "winner is required"})
		return
	}

	if err := s.cfg.Core.Engine.Complete(r.Context(), fp, caller, escrow.Identity(req.Winner)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fp, ok := s.fingerprint(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Core.Engine.Withdraw(r.Context(), fp, caller); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]uint64{"rate": s.cfg.Core.Rates.Rate()})
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Rate uint64 `json:"rate"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.cfg.Core.Rates.SetRate(r.Context(), caller, req.Rate); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"records": s.cfg.Audit.Records()})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity string `json:"identity"`
		Amount   uint64 `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Identity == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "identity is required"})
		return
	}
	s.cfg.Ledger.Credit(req.Identity, req.Amount)
	s.writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.cfg.Ledger.Balance(req.Identity)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.cfg.Ledger.Balance(id)})
}
