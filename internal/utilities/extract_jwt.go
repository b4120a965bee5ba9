package utilities

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(c *gin.Context) (string, error) {
	const BearerSchema = "Bearer "
	authHeader := c.GetHeader("Authorization")

	if len(authHeader) <= len(BearerSchema) || authHeader[:len(BearerSchema)] != BearerSchema {
		return "", fmt.Errorf("Invalid authorization header")
	}

	return authHeader[len(BearerSchema):], nil
}
