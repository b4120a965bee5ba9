package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Fixer-backend/internal/database"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// LocalAuthHandler handles username and password accounts.
type LocalAuthHandler struct {
	DB   *database.DBinstanceStruct
	Auth *Authenticator
}

// NewLocalAuthHandler creates a new instance of LocalAuthHandler with the provided database connection.
func NewLocalAuthHandler(db *database.DBinstanceStruct, a *Authenticator) *LocalAuthHandler {
	return &LocalAuthHandler{
		DB:   db,
		Auth: a,
	}
}

type registerInfo struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Role     string  `json:"role" binding:"required,oneof=poster worker"`
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
}

type loginInfo struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler creates a poster or worker account and signs it in.
// @Summary Register a local account
// @Description Username must be unused and the password at least 8 characters long
// @Tags Auth
// @Accept json
// @Produce json
// @Param Info body registerInfo true "role can be only 'poster' or 'worker'"
// @Success 201 {object} model.LoginResponse "Registered"
// @Failure 400 {object} utilities.ErrorResponse "Info provided not met the condition"
// @Failure 409 {object} utilities.ErrorResponse "Username or email already in use"
// @Failure 500 {object} utilities.ErrorResponse "Database or password hashing error"
// @Router /auth/register [post]
func (lh *LocalAuthHandler) RegisterHandler(c *gin.Context) {
	var info registerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Username, password, and role (only 'poster' or 'worker') must be provided",
		})
		return
	}

	info.Username = strings.TrimSpace(info.Username)
	if len(info.Password) < 8 {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Password should longer or equal to 8 characters",
		})
		return
	}

	hashedPassword, err := utilities.HashPassword(info.Password)
	if err != nil {
		lh.Auth.Log.WithError(err).Error("failed to hash password", nil)
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed hash password"})
		return
	}

	user := model.User{
		Username: info.Username,
		Password: hashedPassword,
		Role:     info.Role,
		Email:    info.Email,
		FullName: info.FullName,
		Phone:    info.Phone,
	}
	if err := lh.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, utilities.ErrorResponse{Error: "Username or email already exist"})
			return
		}
		lh.Auth.Log.WithError(err).Error("failed to create user", map[string]interface{}{"username": info.Username})
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to create user"})
		return
	}

	lh.Auth.respondLogin(c, http.StatusCreated, user)
}

// LoginHandler signs a local account in.
// @Summary Log in with username and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param Info body loginInfo true "credentials"
// @Success 200 {object} model.LoginResponse "Login success"
// @Failure 400 {object} utilities.ErrorResponse "Username or password is not provided"
// @Failure 401 {object} utilities.ErrorResponse "Wrong username or password"
// @Failure 500 {object} utilities.ErrorResponse "Database error"
// @Router /auth/login [post]
func (lh *LocalAuthHandler) LoginHandler(c *gin.Context) {
	var info loginInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{Error: "Username or password is not provided"})
		return
	}

	var user model.User
	err := lh.DB.WithContext(c.Request.Context()).Where("username = ?", info.Username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: "Wrong username or password"})
		return
	case err != nil:
		lh.Auth.Log.WithError(err).Error("failed to load user", map[string]interface{}{"username": info.Username})
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Database error"})
		return
	}

	if user.Password == "" || !utilities.VerifyPassword(info.Password, user.Password) {
		lh.Auth.Log.Info("login failed", map[string]interface{}{"username": info.Username})
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: "Wrong username or password"})
		return
	}

	lh.Auth.respondLogin(c, http.StatusOK, user)
}
