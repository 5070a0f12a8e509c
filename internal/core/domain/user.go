package domain

import "time"

// User is an API user allowed to obtain access tokens.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserCredentials is the login and provisioning payload.
type UserCredentials struct {
	Username string `json:"username" validate:"required,min=4,max=20"`
	Password string `json:"password" validate:"required,min=8,max=30,strongpassword"`
}

// AccessToken is returned by a successful login. ExpiresIn is a unix
// timestamp in milliseconds.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   string `json:"expiresIn"`
}
