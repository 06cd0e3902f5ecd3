package api

import "time"

// Account is an identity record held by the account store.
// Username uniqueness is enforced by the store.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Authorities  []string  `json:"authorities"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasAuthority reports whether the account was granted the given authority.
func (a *Account) HasAuthority(authority string) bool {
	for _, granted := range a.Authorities {
		if granted == authority {
			return true
		}
	}
	return false
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// IdentityResponse describes the caller of a protected request.
type IdentityResponse struct {
	Username    string    `json:"username"`
	Authorities []string  `json:"authorities"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
