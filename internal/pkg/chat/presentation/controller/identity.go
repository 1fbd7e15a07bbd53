package controller

import (
	"errors"
	"net/http"
	"strings"

	"matchchat/internal/infrastructure/auth"
)

var ErrUnauthenticated = errors.New("caller identity is required")

// Identifier resolves the calling user. With an authenticator configured the
// bearer token (Authorization header or "token" query for browsers) is
// verified; otherwise the "user_id" query or X-User-ID header is trusted.
type Identifier struct {
	Auth *auth.Authenticator
}

func (id Identifier) UserID(r *http.Request) (string, error) {
	if id.Auth != nil {
		token := r.Header.Get("Authorization")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		claims, err := id.Auth.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.UserID(), nil
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
