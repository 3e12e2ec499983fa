// Package reminder notifies users before the batteries in their devices
// run out.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"battdevy/internal/auth"
	"battdevy/internal/device"
	"battdevy/internal/inventory"
	"battdevy/internal/metrics"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Config holds scheduler settings
type Config struct {
	Interval  time.Duration
	Lookahead time.Duration
}

// Scheduler periodically looks for devices whose batteries reach their
// estimated end of life within the lookahead window.
type Scheduler struct {
	db       *gorm.DB
	notifier Notifier
	dedupe   Deduper
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// Due - one reminder to deliver
type Due struct {
	DeviceID  uuid.UUID
	Device    string
	ChatID    int64
	Locale    string
	EndOfLife time.Time
}

func NewScheduler(db *gorm.DB, notifier Notifier, dedupe Deduper, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 3 * 24 * time.Hour
	}
	return &Scheduler{
		db:       db,
		notifier: notifier,
		dedupe:   dedupe,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the scheduler loop until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		log.Warn("⚠️ Reminder scheduler already running")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true

	log.Infof("🕐 Reminder scheduler started (%s interval, %s lookahead)", s.cfg.Interval, s.cfg.Lookahead)
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for the current run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	log.Info("🛑 Reminder scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	sent, err := s.RunOnce(ctx)
	if err != nil {
		log.WithError(err).Error("❌ Reminder run failed")
		return
	}
	if sent > 0 {
		log.Infof("🔔 %d battery reminders sent", sent)
	}
}

// RunOnce sends every due reminder not sent before and returns how many
// went out. Delivery failures are logged and retried on the next run.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.FindDue(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, d := range due {
		key := fmt.Sprintf("%s:%s", d.DeviceID, d.EndOfLife.Format("2006-01-02"))
		first, err := s.dedupe.Claim(ctx, key, s.cfg.Lookahead+7*24*time.Hour)
		if err != nil {
			log.WithError(err).Warnf("⚠️ reminder dedupe unavailable for device %s", d.DeviceID)
			continue
		}
		if !first {
			continue
		}
		if err := s.notifier.Notify(ctx, d.ChatID, message(d)); err != nil {
			log.WithError(err).Warnf("⚠️ reminder for device %s not delivered", d.DeviceID)
			if err := s.dedupe.Release(ctx, key); err != nil {
				log.WithError(err).Warnf("⚠️ reminder claim for device %s not released", d.DeviceID)
			}
			continue
		}
		metrics.ObserveReminder()
		sent++
	}
	return sent, nil
}

// FindDue lists devices with installed batteries whose end of life falls
// before now+lookahead, for owners with a Telegram chat.
func (s *Scheduler) FindDue(ctx context.Context) ([]Due, error) {
	var users []auth.User
	if err := s.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	byID := make(map[uuid.UUID]auth.User, len(users))
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	var devices []inventory.Device
	if err := s.db.WithContext(ctx).
		Where("user_id IN ? AND has_batteries = ? AND last_battery_change IS NOT NULL AND battery_life_weeks IS NOT NULL", ids, true).
		Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	horizon := s.now().Add(s.cfg.Lookahead)
	var due []Due
	for i := range devices {
		d := &devices[i]
		eol := device.BatteryEndOfLife(d)
		if eol == nil || eol.After(horizon) {
			continue
		}
		u := byID[d.UserID]
		due = append(due, Due{
			DeviceID:  d.ID,
			Device:    d.Name,
			ChatID:    *u.TelegramChatID,
			Locale:    u.Locale,
			EndOfLife: *eol,
		})
	}
	return due, nil
}

func message(d Due) string {
	date := d.EndOfLife.Format("2006-01-02")
	if d.Locale == auth.LocaleEN {
		return fmt.Sprintf("🔋 The batteries in %q are expected to run out on %s.", d.Device, date)
	}
	return fmt.Sprintf("🔋 「%s」の電池は %s 頃に切れる見込みです。", d.Device, date)
}
