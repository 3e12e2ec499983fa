package inventory

import (
	"fmt"
	"strings"
	"time"

	"battdevy/internal/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Shape - physical battery format shared by groups and devices
type Shape string

const (
	ShapeAA     Shape = "aa"
	ShapeAAA    Shape = "aaa"
	ShapeC      Shape = "c"
	ShapeD      Shape = "d"
	Shape9V     Shape = "9v"
	ShapeCR2032 Shape = "cr2032"
	ShapeCR2025 Shape = "cr2025"
	ShapeCR123A Shape = "cr123a"
	ShapeLR44   Shape = "lr44"
	ShapeOther  Shape = "other"
)

// Shapes lists every valid shape in display order.
var Shapes = []Shape{ShapeAA, ShapeAAA, ShapeC, ShapeD, Shape9V, ShapeCR2032, ShapeCR2025, ShapeCR123A, ShapeLR44, ShapeOther}

func (s Shape) Valid() bool {
	switch s {
	case ShapeAA, ShapeAAA, ShapeC, ShapeD, Shape9V, ShapeCR2032, ShapeCR2025, ShapeCR123A, ShapeLR44, ShapeOther:
		return true
	}
	return false
}

// Fits reports whether a battery of shape s can go into a device requiring
// shape want. "other" matches anything since it is not a real format.
func (s Shape) Fits(want Shape) bool {
	return s == want || s == ShapeOther || want == ShapeOther
}

// Kind - disposable or rechargeable
type Kind string

const (
	KindDisposable   Kind = "disposable"
	KindRechargeable Kind = "rechargeable"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDisposable, KindRechargeable:
		return true
	}
	return false
}

// Status - lifecycle state of one battery unit
type Status string

const (
	StatusCharged  Status = "charged"
	StatusInUse    Status = "in_use"
	StatusEmpty    Status = "empty"
	StatusDisposed Status = "disposed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCharged, StatusInUse, StatusEmpty, StatusDisposed:
		return true
	}
	return false
}

// InitialStatus is the status of a freshly created unit. Disposable units
// may never be "charged", so they start out "empty".
func InitialStatus(kind Kind) Status {
	switch kind {
	case KindRechargeable:
		return StatusCharged
	case KindDisposable:
		return StatusEmpty
	}
	panic(fmt.Sprintf("inventory: unknown kind %q", kind))
}

// DeviceType - category of a battery-consuming device
type DeviceType string

const (
	DeviceRemoteControl DeviceType = "remote_control"
	DeviceSpeaker       DeviceType = "speaker"
	DeviceCamera        DeviceType = "camera"
	DeviceGadget        DeviceType = "gadget"
	DeviceLight         DeviceType = "light"
	DeviceToy           DeviceType = "toy"
	DeviceOther         DeviceType = "other"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceRemoteControl, DeviceSpeaker, DeviceCamera, DeviceGadget, DeviceLight, DeviceToy, DeviceOther:
		return true
	}
	return false
}

// ParseShape normalizes user input ("AA", " 9V ") into a Shape.
func ParseShape(v string) (Shape, error) {
	s := Shape(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown battery shape %q: %w", v, common.ErrValidation)
	}
	return s, nil
}

func ParseKind(v string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(v)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown battery kind %q: %w", v, common.ErrValidation)
	}
	return k, nil
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown battery status %q: %w", v, common.ErrValidation)
	}
	return s, nil
}

func ParseDeviceType(v string) (DeviceType, error) {
	t := DeviceType(strings.ToLower(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown device type %q: %w", v, common.ErrValidation)
	}
	return t, nil
}

// BatteryGroup - a purchased pack of same-shape, same-voltage batteries
type BatteryGroup struct {
	common.OwnedModel
	Name      string  `json:"name" gorm:"size:100;not null"`
	Shape     Shape   `json:"shape" gorm:"size:20;not null"`
	Kind      Kind    `json:"kind" gorm:"size:20;not null"`
	Count     int     `json:"count" gorm:"not null"`
	Voltage   float64 `json:"voltage" gorm:"not null;default:0"`
	Notes     string  `json:"notes" gorm:"type:text"`
	ImagePath *string `json:"image_path,omitempty" gorm:"size:255"`

	// Relations
	Batteries []Battery `json:"batteries,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (BatteryGroup) TableName() string {
	return "battery_groups"
}

// Battery - one physical unit inside a group, addressed by slot number
type Battery struct {
	common.OwnedModel
	GroupID       uuid.UUID  `json:"group_id" gorm:"type:uuid;not null;uniqueIndex:idx_batteries_group_slot"`
	SlotNumber    int        `json:"slot_number" gorm:"not null;uniqueIndex:idx_batteries_group_slot"`
	Status        Status     `json:"status" gorm:"size:20;not null"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastChangedAt *time.Time `json:"last_changed_at,omitempty"`
	DeviceID      *uuid.UUID `json:"device_id,omitempty" gorm:"type:uuid;index"`

	// Relations
	Group *BatteryGroup `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}

func (Battery) TableName() string {
	return "batteries"
}

// Installed reports whether the unit currently sits in a device.
func (b *Battery) Installed() bool {
	return b.DeviceID != nil
}

// Device - a battery-consuming object with a fixed number of slots
type Device struct {
	common.OwnedModel
	Name              string          `json:"name" gorm:"size:100;not null"`
	Type              DeviceType      `json:"type" gorm:"size:30;not null"`
	BatteryShape      Shape           `json:"battery_shape" gorm:"size:20;not null"`
	BatteryCount      int             `json:"battery_count" gorm:"not null"`
	BatteryLifeWeeks  *int            `json:"battery_life_weeks,omitempty"`
	PurchaseDate      *datatypes.Date `json:"purchase_date,omitempty"`
	LastBatteryChange *time.Time      `json:"last_battery_change,omitempty"`
	HasBatteries      bool            `json:"has_batteries" gorm:"not null;default:false"`
	ImagePath         *string         `json:"image_path,omitempty" gorm:"size:255"`
	Notes             string          `json:"notes" gorm:"type:text"`
}

func (Device) TableName() string {
	return "devices"
}

// UsageHistoryRecord - one occupancy interval of a battery in a device.
// EndedAt stays nil while the battery is still installed.
type UsageHistoryRecord struct {
	common.BaseModel
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	BatteryID uuid.UUID  `json:"battery_id" gorm:"type:uuid;not null;index"`
	DeviceID  uuid.UUID  `json:"device_id" gorm:"type:uuid;not null;index"`
	StartedAt time.Time  `json:"started_at" gorm:"not null"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (UsageHistoryRecord) TableName() string {
	return "battery_usage_history"
}

// Models returns every table owned by the inventory for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&BatteryGroup{},
		&Device{},
		&Battery{},
		&UsageHistoryRecord{},
	}
}
