package model

// GoogleUserInfo is the payload returned by the Google userinfo endpoint.
type GoogleUserInfo struct {
	GID           string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// LoginResponse struct holds the response data for login or registration
type LoginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}
