// Package utilities contain utility code that use across the package
package utilities

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/model"
)

// Context keys set by the authentication middleware
const (
	UserKey   = "user"
	CallerKey = "caller"
	ClaimsKey = "claims"
)

// ErrorResponse type for swagger docs
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse type for swagger docs
type MessageResponse struct {
	Message string `json:"message"`
}

// ExtractUser extracts the user model from Gin context.
// It does not abort the request; instead returns an error when missing/invalid.
func ExtractUser(c *gin.Context) (model.User, error) {
	u, _ := c.Get(UserKey)
	if u == nil {
		return model.User{}, errors.New("User information not provided")
	}

	user, ok := u.(model.User)
	if !ok {
		return model.User{}, errors.New("Failed to assert type")
	}
	return user, nil
}

// ExtractCaller returns the identity resolved by the authentication middleware.
func ExtractCaller(c *gin.Context) (model.CallerIdentity, error) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return model.CallerIdentity{}, errors.New("Caller identity not provided")
	}
	caller, ok := v.(model.CallerIdentity)
	if !ok {
		return model.CallerIdentity{}, errors.New("Failed to assert type")
	}
	return caller, nil
}

// CreateAdmin creates an admin user with the given password and username in the provided database.
func CreateAdmin(password string, username string, db *gorm.DB) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := model.User{
		Username: username,
		Password: hashedPassword,
		Role:     model.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// ParseID reads a positive numeric path parameter.
func ParseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid %s: %q", name, c.Param(name))
	}
	return uint(id), nil
}
