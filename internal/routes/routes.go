package routes

import (
	"net/http"

	"github.com/TEESTIMONY/playmarket-api/internal/authz"
	"github.com/TEESTIMONY/playmarket-api/internal/handlers"
	appmw "github.com/TEESTIMONY/playmarket-api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRoutes(api *handlers.API, auth *authz.Authorizer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(appmw.CountRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Works Fine!"))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Post("/auth/login", handlers.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(appmw.Authenticated)

		r.Get("/auth/me", api.MeHandler)

		r.Get("/wallet/balance", api.BalanceHandler)
		r.Get("/wallet/transactions", api.TransactionsHandler)

		r.Post("/transfers", api.InitiateTransferHandler)
		r.Get("/transfers", api.ListTransfersHandler)

		r.Get("/auctions", api.ListAuctionsHandler)
		r.Get("/auctions/history", api.AuctionHistoryHandler)
		r.Get("/auctions/{id}", api.GetAuctionHandler)
		r.Get("/auctions/{id}/leaderboard", api.LeaderboardHandler)
		r.Post("/auctions/{id}/bid", api.PlaceBidHandler)

		r.Group(func(r chi.Router) {
			r.Use(appmw.RequireAdmin(auth))

			r.Post("/auctions", api.CreateAuctionHandler)
			r.Post("/auctions/{id}/end", api.EndAuctionHandler)
			r.Patch("/auctions/{id}/status", api.SetAuctionStatusHandler)
			r.Delete("/auctions/{id}", api.DeleteAuctionHandler)
			r.Post("/winners/{id}/transfer", api.CompleteWinnerTransferHandler)
		})
	})

	return r
}
