package auth

import (
	"fmt"
	"net/http"
)

// CallbackHandler completes the authorization code flow at the redirect URL.
func (m *Manager) CallbackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if msg := q.Get("error"); msg != "" {
			http.Error(w, fmt.Sprintf("authorization denied: %s", msg), http.StatusBadRequest)
			return
		}
		if err := m.consumeState(q.Get("state")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.Exchange(r.Context(), q.Get("code")); err != nil {
			m.logger.Printf("WARNING: OAuth callback failed: %v", err)
			http.Error(w, "failed to complete authorization", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "Google Calendar connected. You can close this window.")
	})
}

// StartHandler redirects the browser to the consent page with a fresh state.
func (m *Manager) StartHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Configured() {
			http.Error(w, "google client credentials are not configured", http.StatusServiceUnavailable)
			return
		}
		http.Redirect(w, r, m.AuthURL(m.NewState()), http.StatusFound)
	})
}
