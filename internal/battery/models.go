package battery

import (
	"time"

	"battdevy/internal/inventory"

	"github.com/google/uuid"
)

// MaxGroupCount caps the number of units one group may declare.
const MaxGroupCount = 100

// Request/Response Models

// CreateGroupRequest represents the request to register a battery pack
type CreateGroupRequest struct {
	Name    string  `json:"name" form:"name" binding:"required,max=100"`
	Shape   string  `json:"shape" form:"shape" binding:"required"`
	Kind    string  `json:"kind" form:"kind" binding:"required"`
	Count   int     `json:"count" form:"count" binding:"required,min=1"`
	Voltage float64 `json:"voltage" form:"voltage" binding:"gte=0"`
	Notes   string  `json:"notes" form:"notes"`
}

// UpdateGroupRequest represents a partial update of a battery group.
// Nil fields are left untouched.
type UpdateGroupRequest struct {
	Name    *string  `json:"name,omitempty" binding:"omitempty,max=100"`
	Shape   *string  `json:"shape,omitempty"`
	Kind    *string  `json:"kind,omitempty"`
	Count   *int     `json:"count,omitempty"`
	Voltage *float64 `json:"voltage,omitempty" binding:"omitempty,gte=0"`
	Notes   *string  `json:"notes,omitempty"`
}

// SetStatusRequest represents a manual status change of one unit
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// GroupInfo represents a battery group with derived view fields
type GroupInfo struct {
	inventory.BatteryGroup
	ImageURL       string                   `json:"image_url,omitempty"`
	ImageWarning   string                   `json:"image_warning,omitempty"`
	InstalledCount int                      `json:"installed_count"`
	StatusCounts   map[inventory.Status]int `json:"status_counts"`
}

// GetGroupsResponse represents the response for listing groups
type GetGroupsResponse struct {
	Groups []GroupInfo `json:"groups"`
}

// BatteryInfo represents one unit as shown on selection screens
type BatteryInfo struct {
	ID            uuid.UUID        `json:"id"`
	GroupID       uuid.UUID        `json:"group_id"`
	GroupName     string           `json:"group_name"`
	Shape         inventory.Shape  `json:"shape"`
	Kind          inventory.Kind   `json:"kind"`
	Voltage       float64          `json:"voltage"`
	SlotNumber    int              `json:"slot_number"`
	Status        inventory.Status `json:"status"`
	DeviceID      *uuid.UUID       `json:"device_id,omitempty"`
	LastCheckedAt *time.Time       `json:"last_checked_at,omitempty"`
	LastChangedAt *time.Time       `json:"last_changed_at,omitempty"`
}

// GetBatteriesResponse represents the response for listing units
type GetBatteriesResponse struct {
	Batteries []BatteryInfo `json:"batteries"`
}

func toBatteryInfo(b inventory.Battery) BatteryInfo {
	info := BatteryInfo{
		ID:            b.ID,
		GroupID:       b.GroupID,
		SlotNumber:    b.SlotNumber,
		Status:        b.Status,
		DeviceID:      b.DeviceID,
		LastCheckedAt: b.LastCheckedAt,
		LastChangedAt: b.LastChangedAt,
	}
	if b.Group != nil {
		info.GroupName = b.Group.Name
		info.Shape = b.Group.Shape
		info.Kind = b.Group.Kind
		info.Voltage = b.Group.Voltage
	}
	return info
}
