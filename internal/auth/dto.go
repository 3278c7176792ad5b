package auth

// LoginRequest carries the credentials forwarded to the identity provider.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse returns the provider-issued token set.
type LoginResponse struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LogoutRequest carries the access token whose sessions should be revoked.
type LogoutRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}
