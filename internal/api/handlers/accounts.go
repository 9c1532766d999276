package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/launcher-accounts/internal/auth/token"
	"github.com/pysugar/launcher-accounts/internal/db"
)

// AccountsAPIHandler handles GET /api/accounts
func AccountsAPIHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := tokenMgr.GetAllAccounts()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts": accounts,
			"count":    len(accounts),
		})
	}
}

type addAccountRequest struct {
	UUID         string     `json:"uuid"`
	Username     string     `json:"username"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ExpiresIn    int64      `json:"expires_in"` // seconds, used when expires_at is absent
}

// AddAccountHandler handles POST /api/accounts, called by the sign-in flow.
func AddAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: decode body: %v", token.ErrInvalidArgument, err))
			return
		}

		expiresAt := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
		if req.ExpiresAt != nil {
			expiresAt = *req.ExpiresAt
		}
		if err := tokenMgr.AddAccount(req.UUID, req.Username, req.AccessToken, req.RefreshToken, expiresAt); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok", "uuid": req.UUID})
	}
}

// RemoveAccountHandler handles DELETE /api/accounts/{uuid}
func RemoveAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := tokenMgr.RemoveAccount(chi.URLParam(r, "uuid")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetActiveAccountHandler handles POST /api/accounts/{uuid}/activate
func SetActiveAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := chi.URLParam(r, "uuid")
		if err := tokenMgr.SetActiveAccount(uuid); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "active_account_uuid": uuid})
	}
}

// ActiveAccountHandler handles GET /api/accounts/active
func ActiveAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, err := tokenMgr.GetActiveAccount()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if acc == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, acc.Summary(true))
	}
}

// TokenHandler handles POST /api/accounts/{uuid}/token
func TokenHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := chi.URLParam(r, "uuid")
		accessToken, err := tokenMgr.GetValidToken(r.Context(), uuid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"uuid": uuid, "access_token": accessToken})
	}
}

// RefreshAccountHandler handles POST /api/accounts/{uuid}/refresh
func RefreshAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := chi.URLParam(r, "uuid")
		if err := tokenMgr.RefreshAccountToken(r.Context(), uuid); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Token refreshed"})
	}
}

// RefreshHandler handles POST /api/refresh: renew every token expiring within lookahead.
func RefreshHandler(tokenMgr *token.Manager, lookahead time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := tokenMgr.RefreshExpiring(r.Context(), lookahead)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "refreshed": n})
	}
}

// EventsHandler handles GET /api/accounts/{uuid}/events?limit=N
func EventsHandler(events *db.EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", token.ErrInvalidArgument))
				return
			}
			limit = n
		}

		list, err := events.List(r.Context(), chi.URLParam(r, "uuid"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": list, "count": len(list)})
	}
}
