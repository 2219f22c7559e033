package ui

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/opd-ai/montessoricomic/srv/session"
)

const sessionCookie = "session_id"

type stateKey struct{}

func isValidSession(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	// Validate UUID format
	_, err := uuid.Parse(sessionID)
	return err == nil
}

func setSessionCookie(w http.ResponseWriter, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionMiddleware attaches the caller's session state to the request,
// issuing a new session cookie when the request has none.
func (ui *GeneratorUI) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if cookie, err := r.Cookie(sessionCookie); err == nil && isValidSession(cookie.Value) {
			sessionID = cookie.Value
		} else {
			sessionID = uuid.New().String()
			setSessionCookie(w, sessionID, 86400) // 24 hours
		}
		state := ui.sessions.Get(sessionID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateKey{}, state)))
	})
}

func stateFrom(r *http.Request) *session.State {
	return r.Context().Value(stateKey{}).(*session.State)
}

func (ui *GeneratorUI) authenticated(state *session.State) bool {
	if !ui.passwordEnabled() {
		return true
	}
	state.Lock()
	defer state.Unlock()
	return state.Authenticated
}

func (ui *GeneratorUI) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ui.authenticated(stateFrom(r)) {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var templateFuncs = template.FuncMap{
	"lines": func(s string) []string {
		var out []string
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	},
}
