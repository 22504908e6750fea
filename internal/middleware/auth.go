package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/configs"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/models"
	"github.com/yameogogildas/transactions/internal/store"
)

// Authenticated resolves the bearer token to a full caller identity
// (id, email, normalized role) and stores it on the request context.
// Every failure here is an authentication failure; role checks happen
// downstream in the services.
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
			return []byte(configs.AppConfig.JWT.Secret), nil
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
		if typ, _ := claims["typ"].(string); typ == "refresh" {
			httputil.WriteError(w, http.StatusUnauthorized, "refresh token cannot be used for access")
			return
		}

		email, ok := claims["sub"].(string)
		if !ok || email == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token payload")
			return
		}

		var user models.User
		if err := store.DB.WithContext(r.Context()).Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				httputil.WriteError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			httputil.WriteError(w, http.StatusInternalServerError, "failed to resolve caller")
			return
		}

		id := authz.Identity{
			UserID: user.ID,
			Email:  user.Email,
			Role:   authz.NormalizeRole(user.Role),
		}
		next.ServeHTTP(w, r.WithContext(authz.WithIdentity(r.Context(), id)))
	})
}
