package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
)

var jwtSecret []byte

// SetJWTSecret installs the signing secret. Called once from main before
// the router starts serving.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// Claims is the authenticated caller identity the handlers pass down to the
// transaction authority.
type Claims struct {
	MobileNumber string
	Role         string
}

// issueToken signs a 24h session token for a logged-in account.
func issueToken(acct *models.Account) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"mobileNumber": acct.MobileNumber,
		"role":         acct.Role,
		"exp":          time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// authenticate verifies the bearer token and extracts the caller identity.
func authenticate(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.New("authorization header required")
	}
	return parseToken(strings.TrimPrefix(authHeader, "Bearer "))
}

func parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	mobile, ok := claims["mobileNumber"].(string)
	if !ok || mobile == "" {
		return nil, errors.New("invalid mobileNumber in token")
	}
	role, _ := claims["role"].(string)
	return &Claims{MobileNumber: mobile, Role: role}, nil
}

// writeJSON is the common success responder.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps ledger sentinel errors to HTTP statuses; anything
// unrecognized is a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
