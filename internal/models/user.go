package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// AchievementProgress is the per-user gamification state. Unlocked ids are
// unique and Score is the sum of their points.
type AchievementProgress struct {
	Unlocked []string           `json:"unlocked"`
	Progress map[string]float64 `json:"progress"`
	Score    int                `json:"score"`
}

// HasUnlocked reports whether the achievement id was already awarded.
func (p *AchievementProgress) HasUnlocked(id string) bool {
	for _, u := range p.Unlocked {
		if u == id {
			return true
		}
	}
	return false
}

// User represents a user in the system
type User struct {
	BaseModel
	Email        string              `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string              `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName    string              `gorm:"size:100" json:"firstName"`
	LastName     string              `gorm:"size:100" json:"lastName"`
	Role         Role                `gorm:"size:20;default:'patient'" json:"role"`
	DateOfBirth  *time.Time          `json:"dateOfBirth,omitempty"`
	PhoneNumber  string              `json:"phoneNumber,omitempty"`
	Address      string              `json:"address,omitempty"`
	ProfileImage string              `json:"profileImage,omitempty"`
	Specialty    string              `gorm:"size:100" json:"specialty,omitempty"`
	IsVerified   bool                `gorm:"default:false" json:"isVerified"`
	Availability *DoctorAvailability `gorm:"serializer:json" json:"-"`
	Achievements AchievementProgress `gorm:"serializer:json" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         Role       `json:"role"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Address      string     `json:"address,omitempty"`
	ProfileImage string     `json:"profileImage,omitempty"`
	Specialty    string     `json:"specialty,omitempty"`
	IsVerified   bool       `json:"isVerified"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// EffectiveAvailability returns the configured hours or the default week.
func (u *User) EffectiveAvailability() DoctorAvailability {
	if u.Availability == nil {
		return DefaultAvailability()
	}
	return *u.Availability
}

// FullName joins first and last name for notification text.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		DateOfBirth:  u.DateOfBirth,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		ProfileImage: u.ProfileImage,
		Specialty:    u.Specialty,
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
