package models

import "gorm.io/gorm"

// User is the owner of a business account. Every other entity is scoped by the user's ID.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	BusinessName string
}
