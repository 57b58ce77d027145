package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/hub"
	"github.com/DoyleJ11/roster-sync/internal/roster"
	"github.com/DoyleJ11/roster-sync/internal/types"
)

const codeLength = 6

// GenerateCode returns a short upper-case session code.
func GenerateCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLength])
}

func CreateSession(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c := GenerateCode()
			if h.Get(r.Context(), c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		if h.Ensure(r.Context(), code) == nil {
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func ListSessions(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes := h.List(r.Context())
		if codes == nil {
			codes = []string{}
		}
		writeJSON(w, http.StatusOK, struct {
			Codes []string `json:"codes"`
		}{Codes: codes})
	}
}

func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		s := h.Get(r.Context(), code)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		v, ok := s.Lobby.State(r.Context())
		if !ok {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		snap := roster.Snapshot{Entries: v.Players, Settings: v.Settings}
		writeJSON(w, http.StatusOK, types.Snapshot(code, v.Version, snap, nil))
	}
}

func DeleteSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if h.Get(r.Context(), code) == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.Inbox() <- hub.RemoveSession{Code: code}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
