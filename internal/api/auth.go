package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tailorshop/m/domain"
)

type ctxKey string

const ctxUserID ctxKey = "userID"

type authClaims struct {
	UserID  int64 `json:"user_id"`
	GroupID int64 `json:"group_id"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(user domain.User) (string, error) {
	now := time.Now()
	claims := authClaims{
		UserID:  user.ID,
		GroupID: user.GroupID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) parseToken(tokenString string) (*authClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// optionalAuth accepts requests without credentials. When an Authorization
// header is sent it must carry a valid bearer token.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.parseToken(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxUserID).(int64)
	return id, ok
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to log in")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
