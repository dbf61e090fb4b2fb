package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/TEESTIMONY/playmarket-api/configs"
	"github.com/TEESTIMONY/playmarket-api/internal/auction"
	"github.com/TEESTIMONY/playmarket-api/internal/authz"
	"github.com/TEESTIMONY/playmarket-api/internal/httputil"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/middleware"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store"
	"github.com/TEESTIMONY/playmarket-api/internal/transfer"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// API bundles the services the HTTP layer dispatches into.
type API struct {
	Registry   *auction.Registry
	Bids       *auction.BidEngine
	Settlement *auction.Settlement
	Ledger     *ledger.Service
	Transfers  *transfer.Service
	Auth       *authz.Authorizer
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user models.User
	if err := store.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(configs.AppConfig.JWT.SECRET))
	if err != nil {
		logger.Log.Error("failed to sign jwt", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: signed})
}

func (api *API) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, _ := middleware.AccountFrom(r.Context())

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"balance":  account.Balance,
		"is_admin": api.Auth.IsAdmin(user, account),
	})
}

func (api *API) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := api.Ledger.Balance(r.Context(), account.ID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"balance":    balance,
	})
}

func (api *API) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entries, err := api.Ledger.Entries(r.Context(), account.ID, 50)
	if err != nil {
		logger.Log.Error("failed to fetch ledger entries", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}
