// Package assignment moves battery units in and out of devices.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"battdevy/internal/common"
	"battdevy/internal/device"
	"battdevy/internal/inventory"
	"battdevy/internal/metrics"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result - device state after a successful operation
type Result struct {
	Device    inventory.Device    `json:"device"`
	Batteries []inventory.Battery `json:"batteries"`
}

// Service runs assignment workflows. Every operation is one transaction
// holding the device row lock, so concurrent reassignments of a device
// are serialized and never observed half-applied.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new assignment service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:  db,
		now: common.Now,
	}
}

// AssignBatteriesToDevice replaces the batteries installed in a device with
// the given selection. An empty selection clears the device.
func (s *Service) AssignBatteriesToDevice(ctx context.Context, userID, deviceID uuid.UUID, batteryIDs []uuid.UUID) (*Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. device ownership, row locked until commit
		dev, err := device.Load(tx, userID, deviceID, true)
		if err != nil {
			return err
		}

		// 2. selection validation, before any write
		selected, err := loadSelection(tx, userID, dev, batteryIDs)
		if err != nil {
			return err
		}

		now := s.now()

		// 3. close history of the previous occupants
		if err := inventory.CloseDeviceHistory(tx, userID, deviceID, now); err != nil {
			return err
		}

		// 4. detach the previous occupants in one update
		detached, err := inventory.DetachDevice(tx, userID, deviceID, now)
		if err != nil {
			return err
		}

		// 5. attach the selection
		if len(selected) == 0 {
			if err := tx.Model(dev).Update("has_batteries", false).Error; err != nil {
				return fmt.Errorf("failed to update device: %w", err)
			}
		} else if err := attach(tx, userID, dev, selected, now); err != nil {
			return err
		}

		log.Infof("🔋 device %s: %d batteries detached, %d attached", deviceID, detached, len(selected))
		result, err = reload(tx, userID, deviceID)
		return err
	})

	switch {
	case err == nil && len(batteryIDs) == 0:
		metrics.ObserveAssignment(metrics.OutcomeCleared)
	case err == nil:
		metrics.ObserveAssignment(metrics.OutcomeAssigned)
	case errors.Is(err, common.ErrInvalidSelection), errors.Is(err, common.ErrNotFoundOrForbidden):
		metrics.ObserveAssignment(metrics.OutcomeRejected)
	default:
		metrics.ObserveAssignment(metrics.OutcomeFailed)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveBatteriesFromDevice detaches everything installed in the device
// and closes its open history.
func (s *Service) RemoveBatteriesFromDevice(ctx context.Context, userID, deviceID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dev, err := device.Load(tx, userID, deviceID, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := inventory.CloseDeviceHistory(tx, userID, deviceID, now); err != nil {
			return err
		}
		if _, err := inventory.DetachDevice(tx, userID, deviceID, now); err != nil {
			return err
		}
		if err := tx.Model(dev).Update("has_batteries", false).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		result, err = reload(tx, userID, deviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddBatteryToDevice installs one more unit without touching the current
// occupants. The device must have a free slot. A unit installed elsewhere
// is moved.
func (s *Service) AddBatteryToDevice(ctx context.Context, userID, deviceID, batteryID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dev, err := device.Load(tx, userID, deviceID, true)
		if err != nil {
			return err
		}
		selected, err := loadSelection(tx, userID, dev, []uuid.UUID{batteryID})
		if err != nil {
			return err
		}
		if selected[0].DeviceID != nil && *selected[0].DeviceID == deviceID {
			result, err = reload(tx, userID, deviceID)
			return err
		}

		var installed int64
		if err := tx.Model(&inventory.Battery{}).
			Where("user_id = ? AND device_id = ?", userID, deviceID).
			Count(&installed).Error; err != nil {
			return fmt.Errorf("failed to count installed batteries: %w", err)
		}
		if int(installed) >= dev.BatteryCount {
			return fmt.Errorf("device has no free slot (%d/%d): %w", installed, dev.BatteryCount, common.ErrInvalidSelection)
		}

		if err := attach(tx, userID, dev, selected, s.now()); err != nil {
			return err
		}
		result, err = reload(tx, userID, deviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// loadSelection resolves and validates the requested units against the
// device. Any problem is reported as ErrInvalidSelection.
func loadSelection(tx *gorm.DB, userID uuid.UUID, dev *inventory.Device, batteryIDs []uuid.UUID) ([]inventory.Battery, error) {
	if len(batteryIDs) == 0 {
		return nil, nil
	}
	if len(batteryIDs) > dev.BatteryCount {
		return nil, fmt.Errorf("%d batteries selected for %d slots: %w", len(batteryIDs), dev.BatteryCount, common.ErrInvalidSelection)
	}
	seen := make(map[uuid.UUID]bool, len(batteryIDs))
	for _, id := range batteryIDs {
		if seen[id] {
			return nil, fmt.Errorf("battery %s selected twice: %w", id, common.ErrInvalidSelection)
		}
		seen[id] = true
	}

	var batteries []inventory.Battery
	if err := tx.Preload("Group").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id IN ?", userID, batteryIDs).
		Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to load batteries: %w", err)
	}
	if len(batteries) != len(batteryIDs) {
		return nil, fmt.Errorf("%d of %d batteries not found: %w", len(batteryIDs)-len(batteries), len(batteryIDs), common.ErrInvalidSelection)
	}

	for _, b := range batteries {
		if b.Group == nil {
			return nil, fmt.Errorf("battery %s has no group: %w", b.ID, common.ErrInvalidSelection)
		}
		if b.Status == inventory.StatusDisposed {
			return nil, fmt.Errorf("battery %s is disposed: %w", b.ID, common.ErrInvalidSelection)
		}
		if !b.Group.Shape.Fits(dev.BatteryShape) {
			return nil, fmt.Errorf("battery %s is %s, device takes %s: %w", b.ID, b.Group.Shape, dev.BatteryShape, common.ErrInvalidSelection)
		}
	}
	return batteries, nil
}

// attach installs the given units into dev, closing their history in any
// other device and recomputing that device's has_batteries flag.
func attach(tx *gorm.DB, userID uuid.UUID, dev *inventory.Device, batteries []inventory.Battery, now time.Time) error {
	ids := make([]uuid.UUID, 0, len(batteries))
	var others []uuid.UUID
	for _, b := range batteries {
		ids = append(ids, b.ID)
		if b.DeviceID != nil && *b.DeviceID != dev.ID {
			others = append(others, *b.DeviceID)
		}
	}

	if err := tx.Model(dev).Updates(map[string]interface{}{
		"last_battery_change": now,
		"has_batteries":       true,
	}).Error; err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}

	if err := inventory.CloseBatteryHistory(tx, userID, ids, now); err != nil {
		return err
	}
	if err := tx.Model(&inventory.Battery{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]interface{}{
			"device_id":       dev.ID,
			"status":          inventory.StatusInUse,
			"last_checked_at": now,
			"last_changed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to attach batteries: %w", err)
	}
	if err := inventory.RefreshHasBatteries(tx, userID, others); err != nil {
		return err
	}

	records := make([]inventory.UsageHistoryRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, inventory.UsageHistoryRecord{
			UserID:    userID,
			BatteryID: id,
			DeviceID:  dev.ID,
			StartedAt: now,
		})
	}
	if err := tx.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to record battery history: %w", err)
	}
	return nil
}

func reload(tx *gorm.DB, userID, deviceID uuid.UUID) (*Result, error) {
	dev, err := device.Load(tx, userID, deviceID, false)
	if err != nil {
		return nil, err
	}
	var batteries []inventory.Battery
	if err := tx.Preload("Group").
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Order("slot_number ASC").
		Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to load installed batteries: %w", err)
	}
	return &Result{Device: *dev, Batteries: batteries}, nil
}
