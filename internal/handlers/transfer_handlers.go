package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/TEESTIMONY/playmarket-api/internal/httputil"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/metrics"
	"github.com/TEESTIMONY/playmarket-api/internal/middleware"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
)

type InitiateTransferRequest struct {
	Amount int64 `json:"amount"`
}

// InitiateTransferHandler converts coins earned in-game into account
// credit through the provider. The provider call happens outside any
// transaction; the credit is deduplicated by transfer id on replay.
func (api *API) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := api.Transfers.Initiate(r.Context(), account.ID, user.Email, req.Amount)
	if err != nil {
		metrics.TransfersInitiated.WithLabelValues(models.TransferFailed).Inc()
		httputil.WriteAppError(w, err)
		return
	}

	metrics.TransfersInitiated.WithLabelValues(models.TransferSuccess).Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "points transferred",
		"transfer": rec,
	})
}

func (api *API) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	transfers, err := api.Transfers.List(r.Context(), account.ID, 50)
	if err != nil {
		logger.Log.Error("failed to list transfers", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transfers": transfers,
		"count":     len(transfers),
	})
}
