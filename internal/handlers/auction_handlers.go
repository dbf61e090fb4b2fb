package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/auction"
	"github.com/TEESTIMONY/playmarket-api/internal/httputil"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/metrics"
	"github.com/TEESTIMONY/playmarket-api/internal/middleware"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

type CreateAuctionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MinimumBid  int64     `json:"minimum_bid"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	ImageURLs   []string  `json:"image_urls"`
}

func (api *API) CreateAuctionHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var req CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := api.Registry.Create(r.Context(), auction.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		MinimumBid:  req.MinimumBid,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CreatedByID: user.ID,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	metrics.AuctionsCreated.Inc()
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (api *API) ListAuctionsHandler(w http.ResponseWriter, r *http.Request) {
	includeAll := r.URL.Query().Get("all") == "true"

	auctions, err := api.Registry.List(r.Context(), includeAll)
	if err != nil {
		logger.Log.Error("failed to list auctions", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"auctions": auctions,
		"count":    len(auctions),
	})
}

func (api *API) GetAuctionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := api.Registry.Get(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount"`
}

func (api *API) PlaceBidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := api.Bids.PlaceBid(r.Context(), id, account.ID, req.Amount)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			metrics.BidsRejected.WithLabelValues(appErr.Code).Inc()
		} else {
			metrics.BidsRejected.WithLabelValues("INTERNAL").Inc()
		}
		httputil.WriteAppError(w, err)
		return
	}

	metrics.BidsAccepted.Inc()
	body := map[string]any{
		"bid":         res.Bid,
		"new_balance": res.NewBalance,
		"bid_count":   res.BidCount,
		"ends_at":     res.EndsAt,
		"extended":    res.Extended,
	}
	httputil.WriteJSON(w, http.StatusCreated, body)
}

func (api *API) EndAuctionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	winner, err := api.Settlement.EndAuction(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	metrics.AuctionsEnded.Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "auction ended",
		"winner":  winner,
	})
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

func (api *API) SetAuctionStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Ending goes through settlement so the winner is always recorded.
	if req.Status == models.AuctionEnded {
		winner, err := api.Settlement.EndAuction(r.Context(), id)
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		metrics.AuctionsEnded.Inc()
		a, err := api.Registry.Get(r.Context(), id)
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"auction": a,
			"winner":  winner,
		})
		return
	}

	a, err := api.Registry.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (api *API) DeleteAuctionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := api.Registry.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "auction deleted"})
}

func (api *API) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	lb, err := api.Registry.Leaderboard(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lb)
}

func (api *API) AuctionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bids, wins, err := api.Registry.UserHistory(r.Context(), account.ID)
	if err != nil {
		logger.Log.Error("failed to fetch auction history", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"bids": bids,
		"wins": wins,
	})
}

func (api *API) CompleteWinnerTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	winner, err := api.Settlement.CompleteTransfer(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "winning coins transferred",
		"winner":  winner,
	})
}
