package server

import (
	"net/http"
)

// handleAdminCache reports cache stats (GET) or purges every cached
// artifact (DELETE).
func (s *Server) handleAdminCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, s.app.Cache.Stats())
	case http.MethodDelete:
		removed := s.app.Cache.InvalidatePrefix("")
		s.logger.Info().Int("removed", removed).Msg("Cache purged via admin endpoint")
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "purged",
			"removed": removed,
		})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}
