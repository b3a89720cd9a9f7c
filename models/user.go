package models

import "time"

type Role string

const (
	RoleStudent  Role = "student"
	RoleSubadmin Role = "subadmin"
	RoleAdmin    Role = "admin"
)

// User is the persisted user document. LastCommentAt backs the durable
// comment cooldown check.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	PasswordHash  string    `json:"password"`
	Role          Role      `json:"role"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"createdAt"`
	LastCommentAt time.Time `json:"lastCommentAt,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      Role      `json:"role"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Disabled:  u.Disabled,
		CreatedAt: u.CreatedAt,
	}
}

type SetRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=student subadmin admin"`
}
