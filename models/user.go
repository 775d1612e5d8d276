package models

// Recognized role claims. Anything else normalizes to RoleUser.
const (
	RoleUser       = "user"
	RoleSpecialist = "specialist"
	RoleAdmin      = "admin"
)

// UserProfile holds the structure for the authenticated user's profile.
type UserProfile struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	SkinType    string `json:"skinType,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

// LoginRequest is the credential payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the result of a successful login.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt,omitempty"`
	User      UserProfile `json:"user"`
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	SkinType    string `json:"skinType,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}
