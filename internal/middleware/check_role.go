package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/utilities"
)

// CheckRole lets through only callers holding one of roles. It must run after RequireAuth.
func CheckRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		caller, err := utilities.ExtractCaller(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: err.Error(),
				Code:  string(apperror.CodeUnauthenticated),
			})
			return
		}

		if !slices.Contains(roles, caller.Role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, utilities.ErrorResponse{
				Error: "User doesn't have permission to access",
				Code:  string(apperror.CodeAuthorization),
			})
			return
		}
		ctx.Next()
	}
}
