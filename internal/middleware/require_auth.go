// Package middleware contain utilities middleware code
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/auth"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/session"
	"Fixer-backend/internal/utilities"
)

// UserLoader resolves the account behind a token or session.
type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// AuthConfig wires RequireAuth. Sessions may be nil, then only bearer
// tokens are accepted.
type AuthConfig struct {
	Users    UserLoader
	Tokens   *auth.TokenIssuer
	Sessions *session.Store
	Cookie   session.Cookie
	Log      logger.Logger
}

// RequireAuth validates the Bearer token in the Authorization header, or
// without one, the session cookie. The resolved user, caller identity and
// token claims are stored in the gin context.
func RequireAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var userID uint

		tokenString, err := utilities.ExtractBearerToken(ctx)
		switch {
		case err == nil:
			claims, err := cfg.Tokens.Validate(tokenString)
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Access token expired"
				}
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
					Error: msg,
					Code:  string(apperror.CodeUnauthenticated),
				})
				return
			}
			if userID, err = auth.UserID(claims); err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
					Error: "Invalid access token",
					Code:  string(apperror.CodeUnauthenticated),
				})
				return
			}
			ctx.Set(utilities.ClaimsKey, claims)

		case cfg.Sessions != nil && cfg.Cookie.Read(ctx) != "":
			data, err := cfg.Sessions.Get(ctx.Request.Context(), cfg.Cookie.Read(ctx))
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					cfg.Log.WithError(err).Warn("session lookup failed", nil)
				}
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
					Error: "Session expired",
					Code:  string(apperror.CodeUnauthenticated),
				})
				return
			}
			userID = data.UserID

		default:
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: "Authentication required",
				Code:  string(apperror.CodeUnauthenticated),
			})
			return
		}

		foundUser, err := cfg.Users.GetUser(ctx.Request.Context(), userID)
		if err != nil {
			if apperror.Is(err, apperror.CodeNotFound) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
					Error: "User not exist",
					Code:  string(apperror.CodeUnauthenticated),
				})
				return
			}
			cfg.Log.WithError(err).Error("failed to retrieve user data", map[string]interface{}{"user_id": userID})
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, utilities.ErrorResponse{
				Error: "Failed to retrieve user data",
			})
			return
		}

		ctx.Set(utilities.UserKey, *foundUser)
		ctx.Set(utilities.CallerKey, foundUser.Caller())
		ctx.Next()
	}
}

// JwtBlacklistCheck rejects tokens revoked by logout. It runs after
// RequireAuth; session-authenticated requests carry no claims and pass.
func JwtBlacklistCheck(bl auth.JwtBlacklistStore, log logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		v, ok := ctx.Get(utilities.ClaimsKey)
		if !ok {
			ctx.Next()
			return
		}
		claims, ok := v.(*jwt.RegisteredClaims)
		if !ok || claims.ID == "" {
			ctx.Next()
			return
		}

		revoked, err := bl.IsBlacklisted(ctx.Request.Context(), claims.ID)
		if err != nil {
			log.WithError(err).Error("failed to check token blacklist", nil)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, utilities.ErrorResponse{
				Error: "Failed to validate token",
			})
			return
		}
		if revoked {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: "Token has been revoked",
				Code:  string(apperror.CodeUnauthenticated),
			})
			return
		}
		ctx.Next()
	}
}
