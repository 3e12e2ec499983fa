package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Helpers below run inside a caller-owned transaction. They are the shared
// building blocks of the assignment workflow and of every operation that
// pulls batteries out of devices (status changes, group/device deletion).

// CloseDeviceHistory sets ended_at on every open history row of a device.
func CloseDeviceHistory(tx *gorm.DB, userID, deviceID uuid.UUID, now time.Time) error {
	err := tx.Model(&UsageHistoryRecord{}).
		Where("user_id = ? AND device_id = ? AND ended_at IS NULL", userID, deviceID).
		Update("ended_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to close device history: %w", err)
	}
	return nil
}

// CloseBatteryHistory sets ended_at on the open history rows of the given
// batteries, wherever they are installed.
func CloseBatteryHistory(tx *gorm.DB, userID uuid.UUID, batteryIDs []uuid.UUID, now time.Time) error {
	if len(batteryIDs) == 0 {
		return nil
	}
	err := tx.Model(&UsageHistoryRecord{}).
		Where("user_id = ? AND battery_id IN ? AND ended_at IS NULL", userID, batteryIDs).
		Update("ended_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to close battery history: %w", err)
	}
	return nil
}

// DetachDevice clears the device reference of every battery installed in
// the device and marks them empty. One batched UPDATE.
func DetachDevice(tx *gorm.DB, userID, deviceID uuid.UUID, now time.Time) (int64, error) {
	res := tx.Model(&Battery{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Updates(map[string]interface{}{
			"device_id":       nil,
			"status":          StatusEmpty,
			"last_changed_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to detach batteries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DetachBatteries pulls specific batteries out of whatever device holds
// them: history is closed, the status is set to status and has_batteries of
// every affected device is recomputed.
func DetachBatteries(tx *gorm.DB, userID uuid.UUID, batteryIDs []uuid.UUID, status Status, now time.Time) error {
	if len(batteryIDs) == 0 {
		return nil
	}

	var deviceIDs []uuid.UUID
	if err := tx.Model(&Battery{}).
		Where("user_id = ? AND id IN ? AND device_id IS NOT NULL", userID, batteryIDs).
		Distinct("device_id").Pluck("device_id", &deviceIDs).Error; err != nil {
		return fmt.Errorf("failed to load affected devices: %w", err)
	}
	if len(deviceIDs) == 0 {
		return nil
	}

	if err := CloseBatteryHistory(tx, userID, batteryIDs, now); err != nil {
		return err
	}
	if err := tx.Model(&Battery{}).
		Where("user_id = ? AND id IN ? AND device_id IS NOT NULL", userID, batteryIDs).
		Updates(map[string]interface{}{
			"device_id":       nil,
			"status":          status,
			"last_changed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to detach batteries: %w", err)
	}
	return RefreshHasBatteries(tx, userID, deviceIDs)
}

// RefreshHasBatteries recomputes the has_batteries flag from the batteries
// table for the given devices.
func RefreshHasBatteries(tx *gorm.DB, userID uuid.UUID, deviceIDs []uuid.UUID) error {
	for _, deviceID := range deviceIDs {
		var installed int64
		if err := tx.Model(&Battery{}).
			Where("user_id = ? AND device_id = ?", userID, deviceID).
			Count(&installed).Error; err != nil {
			return fmt.Errorf("failed to count installed batteries: %w", err)
		}
		if err := tx.Model(&Device{}).
			Where("user_id = ? AND id = ?", userID, deviceID).
			Update("has_batteries", installed > 0).Error; err != nil {
			return fmt.Errorf("failed to update device %s: %w", deviceID, err)
		}
	}
	return nil
}
