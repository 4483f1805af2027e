package token

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SigningKey reads JWT_SIGNING_KEY on every call rather than at package
// init, so a key loaded into the environment by godotenv in main is picked
// up.
func SigningKey() []byte {
	return []byte(os.Getenv("JWT_SIGNING_KEY"))
}

// Enabled reports whether the mutating routes should be wrapped with
// JwtMiddleware. Off by default; the API is public unless AUTH_ENABLED=true.
func Enabled() bool {
	return os.Getenv("AUTH_ENABLED") == "true"
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GetToken exchanges the configured admin credentials (ADMIN_USER plus the
// bcrypt hash in ADMIN_PASS_HASH) for a one-hour HS256 token.
func GetToken(w http.ResponseWriter, r *http.Request) {
	var user credentials
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if user.Username == "" || user.Username != os.Getenv("ADMIN_USER") ||
		!checkPasswordHash(user.Password, os.Getenv("ADMIN_PASS_HASH")) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	tokenString, err := tok.SignedString(SigningKey())
	if err != nil {
		zap.S().Errorw("token signing failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": tokenString})
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// JwtMiddleware rejects requests without a valid Bearer token.
func JwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Forbidden", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return SigningKey(), nil
		})
		if err != nil || !tok.Valid {
			zap.S().Debugw("token rejected", "err", err)
			http.Error(w, "Forbidden", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
