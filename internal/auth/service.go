package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"battdevy/internal/common"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// demoEmail is the address of the shared demo account.
const demoEmail = "demo@battdevy.local"

// Config holds session settings
type Config struct {
	Secret     string
	Expiry     time.Duration
	DemoUserID uuid.UUID
}

// Service handles accounts and sessions
type Service struct {
	db  *gorm.DB
	cfg Config
}

// NewService creates a new auth service
func NewService(db *gorm.DB, cfg Config) *Service {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &Service{db: db, cfg: cfg}
}

// Signup creates an account and logs it in.
func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == demoEmail {
		return nil, fmt.Errorf("email %s is reserved: %w", email, common.ErrConflict)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	locale := req.Locale
	if locale == "" {
		locale = LocaleJA
	}

	user := User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Locale:       locale,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("email %s already exists: %w", email, common.ErrConflict)
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("👤 user signed up: %s", user.ID)
	return s.issue(ctx, &user)
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsDemo || !CheckPassword(user.PasswordHash, req.Password) {
		return nil, fmt.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}
	return s.issue(ctx, &user)
}

// DemoLogin logs into the shared demo account, creating it on first use.
func (s *Service) DemoLogin(ctx context.Context) (*AuthResponse, error) {
	if s.cfg.DemoUserID == uuid.Nil {
		return nil, fmt.Errorf("demo account is disabled: %w", common.ErrNotFoundOrForbidden)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate demo password: %w", err)
	}
	hash, err := HashPassword(hex.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	demo := User{
		Email:        demoEmail,
		PasswordHash: hash,
		DisplayName:  "Demo",
		Locale:       LocaleJA,
		IsDemo:       true,
	}
	demo.ID = s.cfg.DemoUserID
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&demo).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure demo user: %w", err)
	}

	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", s.cfg.DemoUserID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get demo user: %w", err)
	}
	return s.issue(ctx, &user)
}

// Me returns the user behind a session.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile edits display name, locale and Telegram chat id.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Locale != nil {
		updates["locale"] = *req.Locale
	}
	if req.TelegramChatID != nil {
		if *req.TelegramChatID == 0 {
			updates["telegram_chat_id"] = nil
		} else {
			updates["telegram_chat_id"] = *req.TelegramChatID
		}
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return s.Me(ctx, userID)
}

// Authenticate resolves a bearer token to the user id it was issued for.
func (s *Service) Authenticate(token string) (uuid.UUID, error) {
	claims, err := ParseToken(s.cfg.Secret, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	return claims.UserID, nil
}

func (s *Service) issue(ctx context.Context, user *User) (*AuthResponse, error) {
	now := common.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		log.WithError(err).Warnf("⚠️ failed to record login of %s", user.ID)
	}
	user.LastLogin = &now

	token, expiresAt, err := GenerateToken(s.cfg.Secret, user, s.cfg.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsDemoUser reports whether userID is the shared demo account.
func (s *Service) IsDemoUser(userID uuid.UUID) bool {
	return s.cfg.DemoUserID != uuid.Nil && userID == s.cfg.DemoUserID
}
