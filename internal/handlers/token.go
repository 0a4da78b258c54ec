package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	applog "bizview/internal/log"
)

const tokenIssuer = "bizview"

var (
	tokenSecret []byte
	tokenTTL    = 5 * 24 * time.Hour

	errTokensDisabled = errors.New("bearer tokens are not configured")
)

type bearerUserKey struct{}

type tokenClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfigureTokens enables HS256 bearer tokens for API clients. An empty secret disables them.
func ConfigureTokens(secret string, ttl time.Duration) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		tokenSecret = nil
	} else {
		tokenSecret = []byte(secret)
	}
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func issueToken(userID uint, email string, now time.Time) (string, time.Time, error) {
	if len(tokenSecret) == 0 {
		return "", time.Time{}, errTokensDisabled
	}
	expires := now.Add(tokenTTL)
	claims := &tokenClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokenSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func parseBearerToken(header string) (uint, error) {
	if len(tokenSecret) == 0 {
		return 0, errTokensDisabled
	}
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return 0, errors.New("authorization header must be 'Bearer <token>'")
	}

	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), &tokenClaims{}, func(t *jwt.Token) (any, error) {
		return tokenSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, errors.New("token claims are invalid")
	}
	return claims.UserID, nil
}

// IssueToken exchanges email and password for a bearer token.
func IssueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if database == nil || len(tokenSecret) == 0 {
		writeJSONError(w, http.StatusServiceUnavailable, "token authentication not available")
		return
	}

	var payload tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" || payload.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := verifyCredentials(r, email, payload.Password)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		applog.Error(r.Context(), "failed to load user for token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	signed, expires, err := issueToken(user.ID, user.Email, time.Now())
	if err != nil {
		applog.Error(r.Context(), "failed to sign token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}
	applog.Info(r.Context(), "issued api token", "userID", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expires.UTC()})
}
