package entity

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	UserRole    UserRole  `json:"user_role" db:"user_role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.UserRole == UserRoleAdmin
}
