package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/TEESTIMONY/playmarket-api/configs"
	"github.com/TEESTIMONY/playmarket-api/internal/authz"
	"github.com/TEESTIMONY/playmarket-api/internal/httputil"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/metrics"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserContextKey    = "user"
	AccountContextKey = "account"
)

// UserFrom returns the authenticated user stored by Authenticated.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*models.User)
	return u, ok
}

// AccountFrom returns the authenticated user's account.
func AccountFrom(ctx context.Context) (*models.Account, bool) {
	a, ok := ctx.Value(AccountContextKey).(*models.Account)
	return a, ok
}

// Authenticated validates the bearer token and loads the user plus their
// coin account into the request context. The account is created on the
// user's first authenticated request and never deleted.
func Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(configs.AppConfig.JWT.SECRET), nil
		})
		if err != nil || !token.Valid {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		sub, ok := claims["sub"].(float64)
		if !ok {
			logger.Log.Error("jwt subject missing or wrong type")
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token payload")
			return
		}

		var user models.User
		if err := store.DB.First(&user, uint(sub)).Error; err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		var account models.Account
		if err := store.DB.Where(models.Account{UserID: user.ID}).
			FirstOrCreate(&account).Error; err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to load account")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &user)
		ctx = context.WithValue(ctx, AccountContextKey, &account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route on admin privileges. Must run after
// Authenticated.
func RequireAdmin(auth *authz.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFrom(r.Context())
			account, _ := AccountFrom(r.Context())
			if !auth.IsAdmin(user, account) {
				httputil.WriteError(w, http.StatusForbidden, "admin privileges required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CountRequests records every request in the HTTP metrics.
func CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, statusClass(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
