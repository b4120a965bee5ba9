// Package auth contains handlers that sign users in and out.
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/utilities"
)

// Authenticator finishes a successful login: it issues the access token and,
// when a session store is configured, a session cookie.
type Authenticator struct {
	Tokens   *TokenIssuer
	Sessions *session.Store
	Cookie   session.Cookie
	Log      logger.Logger
}

func (a *Authenticator) respondLogin(c *gin.Context, status int, user model.User) {
	accessToken, _, err := a.Tokens.Generate(user.ID)
	if err != nil {
		a.Log.WithError(err).Error("failed to generate access token", map[string]interface{}{"user_id": user.ID})
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to generate access token"})
		return
	}

	if a.Sessions != nil {
		id, err := a.Sessions.Create(c.Request.Context(), &user)
		if err != nil {
			// The bearer token still works without a session.
			a.Log.WithError(err).Warn("failed to create session", map[string]interface{}{"user_id": user.ID})
		} else {
			a.Cookie.Set(c, id, a.Sessions.TTL())
		}
	}

	a.Log.Info("login succeeded", map[string]interface{}{"user_id": user.ID, "role": user.Role})
	c.JSON(status, model.LoginResponse{User: user, AccessToken: accessToken})
}
