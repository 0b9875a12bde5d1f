package model

import (
	"errors"
	"time"
)

// Operator is a kiosk staff account used for the admin API.
type Operator struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         string     `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Roles.
const (
	RoleAdmin     = "admin"
	RoleAttendant = "attendant"
)

// MinPasswordLength is the shortest accepted operator password.
const MinPasswordLength = 8

// ValidRole reports whether role is a known operator role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleAttendant
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:     2,
		RoleAttendant: 1,
	}
	r, ok := levels[role]
	m, okMin := levels[minimum]
	if !ok || !okMin {
		return false
	}
	return r >= m
}

// ValidatePassword checks operator password rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
