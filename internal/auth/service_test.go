package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"battdevy/internal/common"
	"battdevy/internal/testutil"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, demoID uuid.UUID) *Service {
	t.Helper()
	bcryptCost = bcrypt.MinCost
	db := testutil.NewDB(t, &User{})
	return NewService(db, Config{Secret: "test-secret", Expiry: time.Hour, DemoUserID: demoID})
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(t, uuid.Nil)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, &SignupRequest{Email: " Alex@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if signed.User.Email != "alex@example.com" || signed.User.Locale != LocaleJA {
		t.Fatalf("expected normalized email and default locale, got %q %q", signed.User.Email, signed.User.Locale)
	}

	_, err = svc.Signup(ctx, &SignupRequest{Email: "alex@example.com", Password: "another one"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	logged, err := svc.Login(ctx, &LoginRequest{Email: "ALEX@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	userID, err := svc.Authenticate(logged.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if userID != signed.User.ID {
		t.Fatalf("expected token for %s, got %s", signed.User.ID, userID)
	}

	if _, err := svc.Login(ctx, &LoginRequest{Email: "alex@example.com", Password: "wrong"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDemoLogin(t *testing.T) {
	if _, err := newTestService(t, uuid.Nil).DemoLogin(context.Background()); !errors.Is(err, common.ErrNotFoundOrForbidden) {
		t.Fatalf("expected demo disabled, got %v", err)
	}

	demoID := uuid.New()
	svc := newTestService(t, demoID)
	for i := 0; i < 2; i++ {
		resp, err := svc.DemoLogin(context.Background())
		if err != nil {
			t.Fatalf("DemoLogin %d: %v", i, err)
		}
		if resp.User.ID != demoID || !resp.User.IsDemo {
			t.Fatalf("expected demo user %s, got %s demo=%v", demoID, resp.User.ID, resp.User.IsDemo)
		}
	}
}

func TestSignupCannotTakeDemoAddress(t *testing.T) {
	demoID := uuid.New()
	svc := newTestService(t, demoID)
	ctx := context.Background()

	_, err := svc.Signup(ctx, &SignupRequest{Email: "Demo@BattDevy.local", Password: "correct horse"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	resp, err := svc.DemoLogin(ctx)
	if err != nil {
		t.Fatalf("DemoLogin: %v", err)
	}
	if resp.User.ID != demoID {
		t.Fatalf("expected demo user %s, got %s", demoID, resp.User.ID)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t, uuid.Nil)
	ctx := context.Background()
	signed, err := svc.Signup(ctx, &SignupRequest{Email: "kim@example.com", Password: "password1", Locale: LocaleEN})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	chat := int64(424242)
	locale := LocaleJA
	user, err := svc.UpdateProfile(ctx, signed.User.ID, &UpdateProfileRequest{TelegramChatID: &chat, Locale: &locale})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.TelegramChatID == nil || *user.TelegramChatID != chat || user.Locale != LocaleJA {
		t.Fatalf("unexpected profile %+v", user)
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	user := &User{Email: "a@b.c"}
	user.ID = uuid.New()
	token, _, err := GenerateToken("secret-a", user, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken("secret-b", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expired, _, err := GenerateToken("secret-a", user, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken("secret-a", expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}
