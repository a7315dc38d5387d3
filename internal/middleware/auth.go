package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserContextKey contextKey = "user"

// UserClaims is the authenticated caller identity carried in the
// request context.
type UserClaims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	UserType string `json:"userType"` // "passenger" or "rider"
}

// Auth validates the bearer token and adds user claims to the context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates an HS256 token and extracts the caller identity.
func ParseToken(tokenString, secret string) (UserClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return UserClaims{}, jwt.ErrTokenUnverifiable
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return UserClaims{}, jwt.ErrTokenInvalidClaims
	}
	claims := UserClaims{}
	if v, ok := mapClaims["user_id"].(string); ok {
		claims.UserID = v
	}
	if v, ok := mapClaims["name"].(string); ok {
		claims.Name = v
	}
	if v, ok := mapClaims["userType"].(string); ok {
		claims.UserType = v
	}
	if claims.UserID == "" {
		return UserClaims{}, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetUserFromContext extracts user claims from the request context.
func GetUserFromContext(r *http.Request) (UserClaims, bool) {
	claims, ok := r.Context().Value(UserContextKey).(UserClaims)
	return claims, ok
}
