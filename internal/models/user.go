package models

import "time"

// User is the minimal identity record the login flow needs.
// Business profile data lives outside this service.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // "user" or "admin"
	CreatedAt    time.Time
}
