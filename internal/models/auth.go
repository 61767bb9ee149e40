package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates an account for a whitelisted email.
type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
	DisplayName *string `json:"displayName" validate:"omitempty,max=120"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClientMeta is the diagnostic snapshot stored with each refresh session.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// AuthResult is returned by register, login and refresh. RefreshToken is the
// raw secret and only ever leaves the server inside the refresh cookie.
type AuthResult struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// AuthResponse is the JSON body of register, login and refresh.
type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// MeClaims exposes the role claim of the presented access token.
type MeClaims struct {
	IsAdmin bool `json:"isAdmin"`
}

// MeResponse is the JSON body of GET /auth/me.
type MeResponse struct {
	User   User     `json:"user"`
	Claims MeClaims `json:"claims"`
}

// JWTClaims represents the JWT payload for access tokens. The subject holds
// the account id.
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Viewer identifies who is asking. The zero value is an anonymous caller.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// Authenticated reports whether the viewer presented a valid access token.
func (v Viewer) Authenticated() bool {
	return v.UserID != ""
}

// ViewerFromClaims derives a Viewer from verified access-token claims.
func ViewerFromClaims(claims *JWTClaims) Viewer {
	if claims == nil {
		return Viewer{}
	}
	return Viewer{UserID: claims.UserID, IsAdmin: claims.IsAdmin}
}
