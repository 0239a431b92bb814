package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/ledger"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/go-chi/chi/v5"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Auth handlers ---

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// userResponse is the outward projection of a user. The password hash
// is never part of any response.
type userResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Coins int64  `json:"coins"`
	Exp   int64  `json:"exp"`
	Score int64  `json:"score"`
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Coins: u.Coins,
		Exp:   u.Exp,
		Score: u.Score,
	}
}

// handleLogin authenticates a user and issues a session token.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	if req.Name == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"name and password are required"})

		return
	}

	user, token, err := s.auth.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			s.metrics.RecordLogin(false)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid name or password"})

			return
		}

		s.log.WithError(err).Error("Login failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	s.metrics.RecordLogin(true)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(s.sessionTTL.Seconds()),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// handleLogout revokes every session of the calling user.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user != nil {
		s.auth.Logout(user.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMe returns the currently authenticated user.
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- User listing ---

// handleListUsers returns all users with their balances.
func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list users")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Ledger handlers ---

type addCoinsRequest struct {
	TargetName string `json:"target_name"`
	Amount     int64  `json:"amount"`
}

type addCoinsResponse struct {
	Status      string             `json:"status"`
	Transaction *store.Transaction `json:"transaction"`
}

// handleAddCoins credits coins to the named user on behalf of the
// authenticated admin.
func (s *server) handleAddCoins(w http.ResponseWriter, r *http.Request) {
	var req addCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	if req.TargetName == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"target_name is required"})

		return
	}

	actor := userFromContext(r.Context())

	txn, err := s.ledger.Credit(r.Context(), actor, req.TargetName, req.Amount)
	if err != nil {
		status, msg := ledgerErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.log.WithError(err).Error("Credit failed")
		}

		writeJSON(w, status, errorResponse{msg})

		return
	}

	s.metrics.RecordCredit(txn.Amount)

	writeJSON(w, http.StatusOK, addCoinsResponse{
		Status:      "success",
		Transaction: txn,
	})
}

// handleHistory returns the transaction history of a user.
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "userID")

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid user id"})

		return
	}

	limit := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"invalid limit"})

			return
		}
	}

	viewer := userFromContext(r.Context())

	entries, err := s.ledger.History(r.Context(), viewer, uint(id), limit)
	if err != nil {
		status, msg := ledgerErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.log.WithError(err).Error("History read failed")
		}

		writeJSON(w, status, errorResponse{msg})

		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ledgerErrorStatus maps ledger failure kinds to HTTP responses.
// Storage failures intentionally map to 500, never to an
// access-control status.
func ledgerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "admin privileges required"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "amount must be positive"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
