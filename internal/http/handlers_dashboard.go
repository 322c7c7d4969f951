package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"playbox/internal/analytics"
	"playbox/internal/core"
)

// handleTransactions reloads the full list from the backend.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := s.dashboard.LoadTransactions(r.Context(), currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.StartDate != "" && req.EndDate != "" && req.StartDate > req.EndDate {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  "start date is after end date",
			Status: core.Failure("Start date must be before end date"),
			Fields: map[string]string{"startDate": "Must not be after endDate"},
		})
		return
	}
	page, err := s.dashboard.ApplyFilter(r.Context(), currentSession(r), req.criteria())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := s.dashboard.Search(r.Context(), currentSession(r), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	out, err := s.dashboard.Overview(r.Context(), currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.dashboard.ExportCSV(r.Context(), currentSession(r), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, "transactions.csv", buf.Bytes())
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	q := r.URL.Query()
	if q.Get("refresh") == "1" {
		if _, err := s.dashboard.LoadUsers(r.Context(), sess); err != nil {
			writeError(w, r, err)
			return
		}
	}
	page, err := s.dashboard.UserList(r.Context(), sess, analytics.UserQuery{
		Search:  sanitizeInput(q.Get("q")),
		Status:  analytics.ParseStatusFilter(q.Get("status")),
		Balance: analytics.ParseBalanceBand(q.Get("balance")),
		Sort:    analytics.ParseSortKey(q.Get("sort")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	details, err := s.dashboard.UserDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleExportUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.dashboard.ExportUserCSV(r.Context(), id, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, fmt.Sprintf("user-%d.csv", id), buf.Bytes())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeMessage(w, http.StatusNotFound, "Journal is not enabled")
		return
	}
	entries, err := s.journal.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []core.JournalEntry `json:"entries"`
	}{entries})
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

func writeCSV(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
