package device

import (
	"time"

	"battdevy/internal/inventory"

	"github.com/google/uuid"
)

// MaxBatteryCount caps the number of slots one device may declare.
const MaxBatteryCount = 24

// DateLayout is the wire format of purchase dates.
const DateLayout = "2006-01-02"

// Request/Response Models

// CreateDeviceRequest represents the request to register a device
type CreateDeviceRequest struct {
	Name             string `json:"name" form:"name" binding:"required,max=100"`
	Type             string `json:"type" form:"type" binding:"required"`
	BatteryShape     string `json:"battery_shape" form:"battery_shape" binding:"required"`
	BatteryCount     int    `json:"battery_count" form:"battery_count" binding:"required,min=1"`
	BatteryLifeWeeks *int   `json:"battery_life_weeks,omitempty" form:"battery_life_weeks" binding:"omitempty,min=1"`
	PurchaseDate     string `json:"purchase_date,omitempty" form:"purchase_date"`
	Notes            string `json:"notes" form:"notes"`
}

// UpdateDeviceRequest represents a partial update of a device.
// Nil fields are left untouched.
type UpdateDeviceRequest struct {
	Name             *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Type             *string `json:"type,omitempty"`
	BatteryShape     *string `json:"battery_shape,omitempty"`
	BatteryCount     *int    `json:"battery_count,omitempty"`
	BatteryLifeWeeks *int    `json:"battery_life_weeks,omitempty" binding:"omitempty,min=1"`
	PurchaseDate     *string `json:"purchase_date,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// InstalledBattery - a unit currently sitting in the device
type InstalledBattery struct {
	ID         uuid.UUID        `json:"id"`
	GroupID    uuid.UUID        `json:"group_id"`
	GroupName  string           `json:"group_name"`
	SlotNumber int              `json:"slot_number"`
	Status     inventory.Status `json:"status"`
}

// DeviceInfo represents a device with derived view fields
type DeviceInfo struct {
	inventory.Device
	EndOfLife    *time.Time         `json:"end_of_life,omitempty"`
	ImageURL     string             `json:"image_url,omitempty"`
	ImageWarning string             `json:"image_warning,omitempty"`
	Batteries    []InstalledBattery `json:"batteries"`
}

// GetDevicesResponse represents the response for listing devices
type GetDevicesResponse struct {
	Devices []DeviceInfo `json:"devices"`
}

func toInstalled(b inventory.Battery) InstalledBattery {
	ib := InstalledBattery{
		ID:         b.ID,
		GroupID:    b.GroupID,
		SlotNumber: b.SlotNumber,
		Status:     b.Status,
	}
	if b.Group != nil {
		ib.GroupName = b.Group.Name
	}
	return ib
}
