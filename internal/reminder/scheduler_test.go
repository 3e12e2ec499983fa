package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"battdevy/internal/auth"
	"battdevy/internal/inventory"
	"battdevy/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func seed(t *testing.T, db *gorm.DB, chatID *int64, locale string, changed time.Time, weeks int) inventory.Device {
	t.Helper()
	user := auth.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", Locale: locale, TelegramChatID: chatID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	d := inventory.Device{Name: "Smoke alarm", Type: inventory.DeviceGadget, BatteryShape: inventory.Shape9V, BatteryCount: 1,
		HasBatteries: true, LastBatteryChange: &changed, BatteryLifeWeeks: &weeks}
	d.UserID = user.ID
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create device: %v", err)
	}
	return d
}

func TestRunOnceSendsDueRemindersOnce(t *testing.T) {
	db := testutil.NewDB(t, append(inventory.Models(), &auth.User{})...)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	chat := int64(1001)
	other := int64(2002)

	// ends 2024-06-12, inside the 3 day window
	seed(t, db, &chat, auth.LocaleEN, now.AddDate(0, 0, -26), 4)
	// ends in 2 weeks, outside the window
	seed(t, db, &other, auth.LocaleJA, now, 2)
	// due but no chat id
	seed(t, db, nil, auth.LocaleJA, now.AddDate(0, 0, -30), 4)

	notifier := &fakeNotifier{}
	s := NewScheduler(db, notifier, NewMemoryDeduper(), Config{Interval: time.Hour, Lookahead: 72 * time.Hour})
	s.now = func() time.Time { return now }

	sent, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sent != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	if notifier.sent[0].chatID != chat || !strings.Contains(notifier.sent[0].text, "2024-06-12") {
		t.Fatalf("unexpected message %+v", notifier.sent[0])
	}

	sent, err = s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected dedupe to suppress repeat, got %d sent", sent)
	}
}

func TestRunOnceDeliveryFailureIsNotFatal(t *testing.T) {
	db := testutil.NewDB(t, append(inventory.Models(), &auth.User{})...)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	chat := int64(7)
	seed(t, db, &chat, auth.LocaleJA, now.AddDate(0, 0, -7), 1)

	s := NewScheduler(db, &fakeNotifier{err: errors.New("telegram down")}, NewMemoryDeduper(), Config{Lookahead: 24 * time.Hour})
	s.now = func() time.Time { return now }

	sent, err := s.RunOnce(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("expected 0 sent without error, got %d %v", sent, err)
	}
}

func TestRunOnceRetriesAfterDeliveryFailure(t *testing.T) {
	db := testutil.NewDB(t, append(inventory.Models(), &auth.User{})...)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	chat := int64(8)
	seed(t, db, &chat, auth.LocaleEN, now.AddDate(0, 0, -7), 1)

	notifier := &fakeNotifier{err: errors.New("telegram down")}
	s := NewScheduler(db, notifier, NewMemoryDeduper(), Config{Lookahead: 24 * time.Hour})
	s.now = func() time.Time { return now }

	if sent, _ := s.RunOnce(context.Background()); sent != 0 {
		t.Fatalf("expected 0 sent while telegram is down, got %d", sent)
	}

	notifier.err = nil
	sent, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sent != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected the reminder to go out after recovery, got %d", sent)
	}

	if sent, _ := s.RunOnce(context.Background()); sent != 0 {
		t.Fatalf("expected no repeat after delivery, got %d", sent)
	}
}

func TestStartStop(t *testing.T) {
	db := testutil.NewDB(t, append(inventory.Models(), &auth.User{})...)
	s := NewScheduler(db, &fakeNotifier{}, NewMemoryDeduper(), Config{Interval: time.Hour})
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()
	if ok, _ := d.Claim(ctx, "k", time.Hour); !ok {
		t.Fatal("expected first claim to succeed")
	}
	if ok, _ := d.Claim(ctx, "k", time.Hour); ok {
		t.Fatal("expected second claim to fail")
	}
	if ok, _ := d.Claim(ctx, "expired", -time.Second); !ok {
		t.Fatal("expected claim to succeed")
	}
	if ok, _ := d.Claim(ctx, "expired", time.Hour); !ok {
		t.Fatal("expected expired key to be claimable again")
	}
	if err := d.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := d.Claim(ctx, "k", time.Hour); !ok {
		t.Fatal("expected released key to be claimable again")
	}
}
