package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/utilities"
)

// LogoutController handles user logout by blacklisting JWT tokens and
// ending the session behind the cookie.
type LogoutController struct {
	BlacklistStore JwtBlacklistStore
	Sessions       *session.Store
	Cookie         session.Cookie
	Log            logger.Logger
}

// NewLogoutController creates a new instance of LogoutController
func NewLogoutController(blacklistStore JwtBlacklistStore, sessions *session.Store, cookie session.Cookie, log logger.Logger) *LogoutController {
	return &LogoutController{
		BlacklistStore: blacklistStore,
		Sessions:       sessions,
		Cookie:         cookie,
		Log:            log,
	}
}

// LogoutHandler revokes the caller's credentials. With ?all=true every
// session of the user ends.
// @Summary Log out
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Param all query bool false "end every session of the user"
// @Success 200 {object} utilities.MessageResponse
// @Failure 401 {object} utilities.ErrorResponse
// @Failure 500 {object} utilities.ErrorResponse
// @Router /auth/logout [post]
func (lc *LogoutController) LogoutHandler(c *gin.Context) {
	ctx := c.Request.Context()
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	if claims, ok := extractClaims(c); ok && claims.ID != "" && claims.ExpiresAt != nil {
		if err := lc.BlacklistStore.AddToBlacklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			lc.Log.WithError(err).Error("failed to blacklist token", map[string]interface{}{"user_id": caller.UserID})
			c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to logout"})
			return
		}
	}

	if lc.Sessions != nil {
		if c.Query("all") == "true" {
			if _, err := lc.Sessions.DeleteAll(ctx, caller.UserID); err != nil {
				lc.Log.WithError(err).Warn("failed to end sessions", map[string]interface{}{"user_id": caller.UserID})
			}
		} else if id := lc.Cookie.Read(c); id != "" {
			if err := lc.Sessions.Delete(ctx, id); err != nil {
				lc.Log.WithError(err).Warn("failed to end session", map[string]interface{}{"user_id": caller.UserID})
			}
		}
		lc.Cookie.Clear(c)
	}

	c.JSON(http.StatusOK, utilities.MessageResponse{Message: "Successfully logged out"})
}

func extractClaims(c *gin.Context) (*jwt.RegisteredClaims, bool) {
	v, ok := c.Get(utilities.ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.RegisteredClaims)
	return claims, ok
}
