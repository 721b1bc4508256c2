package models

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the payload of /auth/login and /auth/signup. The server may
// answer either with a nested user or with the profile fields flattened next
// to the token; Normalize folds the second form into the first.
type AuthResponse struct {
	Token   string `json:"token,omitempty"`
	Type    string `json:"type,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`

	ID       int64    `json:"id,omitempty"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (r *AuthResponse) Normalize() {
	if r.User == nil && r.Username != "" {
		r.User = &User{
			ID:       r.ID,
			Username: r.Username,
			Email:    r.Email,
			Roles:    r.Roles,
		}
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error body the tracker API returns.
type ErrorResponse struct {
	Status           int               `json:"status,omitempty"`
	Error            string            `json:"error,omitempty"`
	Message          string            `json:"message,omitempty"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
	Path             string            `json:"path,omitempty"`
}

// SessionState is the persisted form of a session: token and profile always
// travel as one value.
type SessionState struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (s SessionState) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *SessionState) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
