package http

import (
	"net/http"
	"strings"
	"time"

	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/session"
)

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Admin     core.Admin `json:"admin"`
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token to a live session and stores it
// in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "Please log in")
			return
		}
		sess, err := s.sessions.Authenticate(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := session.WithSession(r.Context(), sess)
		logger := log.FromContext(ctx).With(log.FieldSessionID, sess.ID, log.FieldAdmin, sess.Admin.Username)
		next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
	})
}

// requireOwner must run after requireSession.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Please log in")
			return
		}
		if !sess.Admin.IsOwner() {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Owner route refused",
				log.FieldRole, string(sess.Admin.Role),
				log.FieldPath, r.URL.Path)
			writeMessage(w, http.StatusForbidden, "Only the owner can open this page")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentSession is only called behind requireSession.
func currentSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, token, err := s.sessions.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldAdmin, req.Username)
		writeError(w, r, err)
		return
	}
	s.metrics.SetActiveSessions(s.sessions.Len())
	log.FromContext(r.Context()).InfoContext(r.Context(), "Operator logged in",
		log.NewFields().WithOperation(log.OpLogin).WithAdmin(sess.Admin.Username, string(sess.Admin.Role)).ToSlice()...)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, Admin: sess.Admin})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.SetActiveSessions(s.sessions.Len())
	log.FromContext(r.Context()).InfoContext(r.Context(), "Operator logged out", log.FieldOperation, log.OpLogout)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	writeJSON(w, http.StatusOK, struct {
		Admin     core.Admin `json:"admin"`
		ExpiresAt time.Time  `json:"expiresAt"`
	}{sess.Admin, sess.ExpiresAt})
}
