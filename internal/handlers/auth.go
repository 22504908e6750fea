package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/configs"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/logger"
	"github.com/yameogogildas/transactions/internal/models"
	"github.com/yameogogildas/transactions/internal/store"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "name and email are required")
		return
	}
	if len(req.Password) < 6 {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "password must be at least 6 characters")
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = authz.RoleClient
	}
	if !authz.ValidRole(role) {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "role must be client, agent or service")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Password: string(hash), Role: role}
	if err := store.DB.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httputil.WriteError(w, http.StatusConflict, "name or email is already used")
			return
		}
		logger.Log.Error("failed to create user", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, UserResponse{
		ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role,
	})
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
	if err := store.DB.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	access, err := signToken(user.Email, configs.AppConfig.JWT.AccessTTL, "")
	if err == nil {
		var refresh string
		refresh, err = signToken(user.Email, configs.AppConfig.JWT.RefreshTTL, "refresh")
		if err == nil {
			httputil.WriteJSON(w, http.StatusOK, LoginResponse{
				AccessToken:  access,
				RefreshToken: refresh,
				Name:         user.Name,
				Email:        user.Email,
				Role:         authz.NormalizeRole(user.Role),
			})
			return
		}
	}
	logger.Log.Error("failed to sign jwt", zap.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
}

func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httputil.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(configs.AppConfig.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid token claims")
		return
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		httputil.WriteError(w, http.StatusUnauthorized, "not a refresh token")
		return
	}
	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid token payload")
		return
	}

	access, err := signToken(email, configs.AppConfig.JWT.AccessTTL, "")
	if err != nil {
		logger.Log.Error("failed to sign jwt", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var user models.User
	if err := store.DB.WithContext(r.Context()).First(&user, id.UserID).Error; err != nil {
		logger.Log.Error("failed to load profile", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UserResponse{
		ID: user.ID, Name: user.Name, Email: user.Email, Role: id.Role,
	})
}

func signToken(subject string, ttl time.Duration, typ string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	if typ != "" {
		claims["typ"] = typ
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(configs.AppConfig.JWT.Secret))
}
