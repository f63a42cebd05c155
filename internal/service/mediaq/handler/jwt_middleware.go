package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mediaq/internal/pkg/server"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const subjectContextKey = "subject"

// JWTMiddleware requires an HS256 bearer token signed with secret
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return server.ErrorResponse(c, http.StatusUnauthorized, nil, "Missing authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return server.ErrorResponse(c, http.StatusUnauthorized, nil, "Invalid authorization header format")
			}

			claims, err := ValidateToken(parts[1], secret)
			if err != nil {
				return server.ErrorResponse(c, http.StatusUnauthorized, err.Error(), "Invalid or expired token")
			}

			c.Set(subjectContextKey, claims.Subject)
			return next(c)
		}
	}
}

// ValidateToken parses an HS256 token and returns its registered claims
func ValidateToken(tokenString string, secret []byte) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SubjectFromContext returns the authenticated token subject, if any
func SubjectFromContext(c echo.Context) string {
	subject, _ := c.Get(subjectContextKey).(string)
	return subject
}
