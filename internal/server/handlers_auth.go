package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/jantman/kiosk-show-replacement-sub000/internal/errors"
)

const sessionKeyPrincipal = "principal"

type loginRequest struct {
	Username string `json:"username"`
}

// handleLogin stamps the admin principal into a session cookie. Identity
// only: credential verification lives in the content-management layer,
// which fronts this service.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid login body")
	}
	if req.Username == "" {
		return apperrors.Validation("username is required")
	}

	sess, _ := s.sessionStore.Get(c.Request(), sessionName)
	sess.Values[sessionKeyPrincipal] = req.Username
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return apperrors.Internal("failed to save session", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"username": req.Username})
}

// adminPrincipal extracts the admin name from the session cookie,
// returning "" when absent.
func (s *Server) adminPrincipal(c echo.Context) string {
	sess, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return ""
	}
	principal, _ := sess.Values[sessionKeyPrincipal].(string)
	return principal
}

// requireAdmin guards endpoints reserved for identified administrators.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminPrincipal(c) == "" {
			return apperrors.Unauthorized("admin session required")
		}
		return next(c)
	}
}
