// Package history exposes the battery usage history of devices and units.
package history

import (
	"context"
	"fmt"

	"battdevy/internal/common"
	"battdevy/internal/inventory"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry - one occupancy interval with display names resolved
type Entry struct {
	inventory.UsageHistoryRecord
	DeviceName string `json:"device_name,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
	SlotNumber int    `json:"slot_number,omitempty"`
}

// ListResponse represents a history listing
type ListResponse struct {
	Entries []Entry `json:"entries"`
}

// Service reads usage history
type Service struct {
	db *gorm.DB
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListByDevice returns the history of a device, newest first.
func (s *Service) ListByDevice(ctx context.Context, userID, deviceID uuid.UUID) (*ListResponse, error) {
	db := s.db.WithContext(ctx)
	if err := ensureOwned(db, &inventory.Device{}, userID, deviceID, "device"); err != nil {
		return nil, err
	}
	return s.list(db, userID, "device_id = ?", deviceID)
}

// ListByBattery returns the history of one unit, newest first.
func (s *Service) ListByBattery(ctx context.Context, userID, batteryID uuid.UUID) (*ListResponse, error) {
	db := s.db.WithContext(ctx)
	if err := ensureOwned(db, &inventory.Battery{}, userID, batteryID, "battery"); err != nil {
		return nil, err
	}
	return s.list(db, userID, "battery_id = ?", batteryID)
}

func (s *Service) list(db *gorm.DB, userID uuid.UUID, where string, id uuid.UUID) (*ListResponse, error) {
	var records []inventory.UsageHistoryRecord
	if err := db.Where("user_id = ?", userID).Where(where, id).
		Order("started_at DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage history: %w", err)
	}

	deviceIDs := make([]uuid.UUID, 0, len(records))
	batteryIDs := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		deviceIDs = append(deviceIDs, r.DeviceID)
		batteryIDs = append(batteryIDs, r.BatteryID)
	}

	devices := map[uuid.UUID]string{}
	batteries := map[uuid.UUID]inventory.Battery{}
	if len(records) > 0 {
		var ds []inventory.Device
		if err := db.Where("user_id = ? AND id IN ?", userID, deviceIDs).Find(&ds).Error; err != nil {
			return nil, fmt.Errorf("failed to get devices: %w", err)
		}
		for _, d := range ds {
			devices[d.ID] = d.Name
		}
		var bs []inventory.Battery
		if err := db.Preload("Group").Where("user_id = ? AND id IN ?", userID, batteryIDs).Find(&bs).Error; err != nil {
			return nil, fmt.Errorf("failed to get batteries: %w", err)
		}
		for _, b := range bs {
			batteries[b.ID] = b
		}
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e := Entry{UsageHistoryRecord: r, DeviceName: devices[r.DeviceID]}
		if b, ok := batteries[r.BatteryID]; ok {
			e.SlotNumber = b.SlotNumber
			if b.Group != nil {
				e.GroupName = b.Group.Name
			}
		}
		entries = append(entries, e)
	}
	return &ListResponse{Entries: entries}, nil
}

func ensureOwned(db *gorm.DB, model interface{}, userID, id uuid.UUID, what string) error {
	var n int64
	if err := db.Model(model).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to get %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, common.ErrNotFoundOrForbidden)
	}
	return nil
}

