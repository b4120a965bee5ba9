package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"Fixer-backend/internal/config"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// GoogleUserInfoEndpoint answers with model.GoogleUserInfo for a bearer token.
const GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// NewGoogleOauthConfig builds the Google OAuth2 client from configuration.
func NewGoogleOauthConfig(cfg config.AuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
			"openid",
		},
		Endpoint:    google.Endpoint,
		RedirectURL: cfg.Google.RedirectURL,
	}
}

// OauthLoginHandler struct holds the database connection and OAuth2 configuration for handling OAuth login.
type OauthLoginHandler struct {
	DB               *database.DBinstanceStruct
	OauthConfig      *oauth2.Config
	UserInfoEndpoint string
	Auth             *Authenticator
}

type code struct {
	Code string `json:"code" binding:"required"`
	Role string `json:"role" binding:"omitempty,oneof=poster worker"`
}

// NewOauthLoginHandler creates a new instance of OauthLoginHandler with the provided database connection and OAuth2 configuration.
func NewOauthLoginHandler(db *database.DBinstanceStruct, oauthConfig *oauth2.Config, userInfoEndpoint string, a *Authenticator) *OauthLoginHandler {
	return &OauthLoginHandler{
		DB:               db,
		OauthConfig:      oauthConfig,
		UserInfoEndpoint: userInfoEndpoint,
		Auth:             a,
	}
}

func (h *OauthLoginHandler) getUserInfo(ctx context.Context, authCode string) (model.GoogleUserInfo, error) {
	var uInfo model.GoogleUserInfo

	token, err := h.OauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return uInfo, fmt.Errorf("failed to receive token: %w", err)
	}

	client := h.OauthConfig.Client(ctx, token)
	resp, err := client.Get(h.UserInfoEndpoint)
	if err != nil {
		return uInfo, fmt.Errorf("failed to fetch user information: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return uInfo, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(&uInfo); err != nil {
		return uInfo, fmt.Errorf("failed to decode user info: %w", err)
	}
	if uInfo.GID == "" {
		return uInfo, errors.New("user info has no google id")
	}
	return uInfo, nil
}

// GoogleLoginHandler exchanges a Google authorization code, creates the
// account on first use and signs it in.
// @Summary Log in or register with Google
// @Description New accounts take the requested role, worker by default
// @Tags Auth
// @Accept json
// @Produce json
// @Param Code body code true "Authentication code from google"
// @Success 200 {object} model.LoginResponse "Login success"
// @Success 201 {object} model.LoginResponse "Register success"
// @Failure 400 {object} utilities.ErrorResponse "Fail to receive token or fetch user info"
// @Failure 500 {object} utilities.ErrorResponse "Database error"
// @Router /auth/google [post]
func (h *OauthLoginHandler) GoogleLoginHandler(c *gin.Context) {
	var req code
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: fmt.Sprintf("No authorization code provided: %v", err.Error()),
		})
		return
	}

	uInfo, err := h.getUserInfo(c.Request.Context(), req.Code)
	if err != nil {
		h.Auth.Log.WithError(err).Info("google login failed", nil)
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var user model.User
	respStatus := http.StatusOK
	db := h.DB.WithContext(c.Request.Context())
	err = db.Where("google_id = ?", uInfo.GID).First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		role := req.Role
		if role == "" {
			role = model.RoleWorker
		}
		gid := uInfo.GID
		user = model.User{
			Username: "google_" + uInfo.GID,
			FullName: uInfo.Name,
			Role:     role,
			GoogleID: &gid,
		}
		if uInfo.Email != "" {
			email := uInfo.Email
			user.Email = &email
		}
		if err := db.Create(&user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, utilities.ErrorResponse{Error: "An account with this email already exists"})
				return
			}
			h.Auth.Log.WithError(err).Error("failed to create google user", nil)
			c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Failed to create user"})
			return
		}
		respStatus = http.StatusCreated
	case err != nil:
		h.Auth.Log.WithError(err).Error("failed to load google user", nil)
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Database error"})
		return
	}

	h.Auth.respondLogin(c, respStatus, user)
}

// Callback echoes the authorization code for clients that cannot read the redirect themselves.
// @Summary Retrieves a query parameter named "code" from the request and returns it in a JSON response
// @Tags Auth
// @Produce json
// @Param Code query string false "Authentication code from google"
// @Success 200 {object} code
// @Router /auth/google/callback [get]
func (h *OauthLoginHandler) Callback(c *gin.Context) {
	c.JSON(http.StatusOK, code{Code: c.Query("code")})
}
