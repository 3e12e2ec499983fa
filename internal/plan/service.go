package plan

import (
	"context"
	"fmt"

	"battdevy/internal/common"
	"battdevy/internal/inventory"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles plan lookup and quota checks
type Service struct {
	db *gorm.DB
}

// NewService creates a new plan service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetPlan returns the user's plan, creating a free one on first access.
func (s *Service) GetPlan(ctx context.Context, userID uuid.UUID) (*UserPlan, error) {
	limits := DefaultLimits(TierFree)
	p := UserPlan{
		UserID:           userID,
		Tier:             TierFree.BackendName(),
		MaxBatteryGroups: limits.MaxBatteryGroups,
		MaxDevices:       limits.MaxDevices,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure plan: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

// ChangeTier moves the user to another tier and resets base limits to that
// tier's defaults.
func (s *Service) ChangeTier(ctx context.Context, userID uuid.UUID, tier Tier) (*UserPlan, error) {
	p, err := s.GetPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := DefaultLimits(tier)
	if err := s.db.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"tier":               tier.BackendName(),
		"max_battery_groups": limits.MaxBatteryGroups,
		"max_devices":        limits.MaxDevices,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to change tier: %w", err)
	}
	log.Infof("💳 plan changed: user=%s tier=%s", userID, tier)
	return s.GetPlan(ctx, userID)
}

// Usage returns current counts against the effective limits.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*UsageResponse, error) {
	p, err := s.GetPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.count(ctx, &inventory.BatteryGroup{}, userID)
	if err != nil {
		return nil, err
	}
	devices, err := s.count(ctx, &inventory.Device{}, userID)
	if err != nil {
		return nil, err
	}
	tier := p.PublicTier()
	return &UsageResponse{
		Tier:          tier,
		BatteryGroups: quota(groups, p.MaxBatteryGroups, tier),
		Devices:       quota(devices, p.MaxDevices, tier),
	}, nil
}

// CheckGroupLimit returns ErrPlanLimitReached when the user may not create
// another battery group.
func (s *Service) CheckGroupLimit(ctx context.Context, userID uuid.UUID) error {
	p, err := s.GetPlan(ctx, userID)
	if err != nil {
		return err
	}
	n, err := s.count(ctx, &inventory.BatteryGroup{}, userID)
	if err != nil {
		return err
	}
	if IsLimitReached(n, p.MaxBatteryGroups, p.PublicTier()) {
		return fmt.Errorf("battery groups (%d/%d): %w", n, EffectiveLimit(p.MaxBatteryGroups, p.PublicTier()), common.ErrPlanLimitReached)
	}
	return nil
}

// CheckDeviceLimit returns ErrPlanLimitReached when the user may not create
// another device.
func (s *Service) CheckDeviceLimit(ctx context.Context, userID uuid.UUID) error {
	p, err := s.GetPlan(ctx, userID)
	if err != nil {
		return err
	}
	n, err := s.count(ctx, &inventory.Device{}, userID)
	if err != nil {
		return err
	}
	if IsLimitReached(n, p.MaxDevices, p.PublicTier()) {
		return fmt.Errorf("devices (%d/%d): %w", n, EffectiveLimit(p.MaxDevices, p.PublicTier()), common.ErrPlanLimitReached)
	}
	return nil
}

func (s *Service) count(ctx context.Context, model interface{}, userID uuid.UUID) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return int(n), nil
}

func quota(used, base int, tier Tier) QuotaInfo {
	return QuotaInfo{
		Used:         used,
		BaseLimit:    base,
		Bonus:        Bonus(tier),
		Limit:        EffectiveLimit(base, tier),
		LimitReached: IsLimitReached(used, base, tier),
	}
}
