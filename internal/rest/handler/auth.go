package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/robalyx/socialgraph/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// RequireToken rejects requests that do not carry "Authorization: Bearer <token>".
// An empty token leaves the routes open.
func RequireToken(token string, logger *zap.Logger) bunrouter.MiddlewareFunc {
	expected := []byte(token)

	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		if token == "" {
			return next
		}

		return func(w http.ResponseWriter, req bunrouter.Request) error {
			given, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
				logger.Warn("Rejected unauthorized request",
					zap.String("path", req.URL.Path),
					zap.String("remote_addr", req.RemoteAddr))

				return writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{Error: "Unauthorized"})
			}

			return next(w, req)
		}
	}
}
