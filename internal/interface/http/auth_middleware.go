package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polaris/gateway/internal/domain/auth"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// authMiddleware enforces the "signed bearer token, role api, HS256" contract from
// spec §6 on every protected route.
func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}
		token := strings.TrimSpace(parts[1])
		claims, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			code := "invalid_token"
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				status = http.StatusInternalServerError
				code = "auth_failed"
			}
			abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
			return
		}
		if claims.Role != auth.RoleAPI {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "token role is not permitted for this route", nil))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}
