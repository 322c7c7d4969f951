package http

import (
	"net/http"

	"playbox/internal/core"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.pos.Scan(r.Context(), sanitizeInput(req.CardUID))
	if err != nil {
		writeErrorBanner(w, r, err, out.Banner)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.pos.CreateUser(r.Context(), currentSession(r).Admin, core.NewUser{
		CardUID: sanitizeInput(req.CardUID),
		Name:    sanitizeInput(req.Name),
		Phone:   sanitizeInput(req.Phone),
		Email:   sanitizeInput(req.Email),
	})
	if err != nil {
		writeErrorBanner(w, r, err, out.Banner)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAddBalance(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.pos.AddBalance(r.Context(), currentSession(r).Admin, sanitizeInput(req.CardUID), amount)
	if err != nil {
		writeErrorBanner(w, r, err, out.Banner)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeductBalance(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.pos.DeductBalance(r.Context(), currentSession(r).Admin, sanitizeInput(req.CardUID), amount,
		sanitizeInput(req.Deductor), sanitizeInput(req.Description))
	if err != nil {
		writeErrorBanner(w, r, err, out.Banner)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFindByPhone(w http.ResponseWriter, r *http.Request) {
	holder, err := s.pos.FindByPhone(r.Context(), sanitizeInput(r.URL.Query().Get("phone")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holder)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultRecentLimit)
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	txs, err := s.pos.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions []core.Transaction `json:"transactions"`
	}{txs})
}
