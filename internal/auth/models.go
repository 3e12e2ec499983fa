package auth

import (
	"time"

	"battdevy/internal/common"
)

// Supported UI locales
const (
	LocaleJA = "ja"
	LocaleEN = "en"
)

// User - account owning battery groups and devices
type User struct {
	common.BaseModel
	Email          string     `json:"email" gorm:"uniqueIndex;not null;size:100"`
	PasswordHash   string     `json:"-" gorm:"not null;size:255"`
	DisplayName    string     `json:"display_name" gorm:"size:100"`
	Locale         string     `json:"locale" gorm:"size:5;not null;default:'ja'"`
	TelegramChatID *int64     `json:"telegram_chat_id,omitempty"`
	IsDemo         bool       `json:"is_demo" gorm:"default:false"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Request/Response Models

// SignupRequest represents the request to create an account
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email,max=100"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"max=100"`
	Locale      string `json:"locale" binding:"omitempty,oneof=ja en"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	DisplayName    *string `json:"display_name,omitempty" binding:"omitempty,max=100"`
	Locale         *string `json:"locale,omitempty" binding:"omitempty,oneof=ja en"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
}

// AuthResponse represents a successful login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
