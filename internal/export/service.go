// Package export renders a user's inventory as an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"battdevy/internal/device"
	"battdevy/internal/inventory"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Sheet names
const (
	SheetGroups    = "Groups"
	SheetBatteries = "Batteries"
	SheetDevices   = "Devices"
)

const timeLayout = "2006-01-02 15:04"

// Service builds inventory workbooks
type Service struct {
	db *gorm.DB
}

// NewService creates a new export service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Write renders the workbook of userID into w.
func (s *Service) Write(ctx context.Context, userID uuid.UUID, w io.Writer) error {
	f, err := s.Workbook(ctx, userID)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook builds the in-memory workbook. The caller closes it.
func (s *Service) Workbook(ctx context.Context, userID uuid.UUID) (*excelize.File, error) {
	db := s.db.WithContext(ctx)

	var groups []inventory.BatteryGroup
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to get battery groups: %w", err)
	}
	var batteries []inventory.Battery
	if err := db.Preload("Group").Where("user_id = ?", userID).Order("group_id ASC, slot_number ASC").Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to get batteries: %w", err)
	}
	var devices []inventory.Device
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	deviceNames := make(map[uuid.UUID]string, len(devices))
	for _, d := range devices {
		deviceNames[d.ID] = d.Name
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetGroups); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetBatteries, SheetDevices} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	groupRows := make([][]interface{}, 0, len(groups))
	for _, g := range groups {
		groupRows = append(groupRows, []interface{}{
			g.Name, string(g.Shape), string(g.Kind), g.Count, g.Voltage, g.Notes, g.CreatedAt.Format(timeLayout),
		})
	}
	batteryRows := make([][]interface{}, 0, len(batteries))
	for _, b := range batteries {
		groupName := ""
		if b.Group != nil {
			groupName = b.Group.Name
		}
		deviceName := ""
		if b.DeviceID != nil {
			deviceName = deviceNames[*b.DeviceID]
		}
		batteryRows = append(batteryRows, []interface{}{
			groupName, b.SlotNumber, string(b.Status), deviceName, formatTime(b.LastChangedAt),
		})
	}
	deviceRows := make([][]interface{}, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		weeks := ""
		if d.BatteryLifeWeeks != nil {
			weeks = fmt.Sprint(*d.BatteryLifeWeeks)
		}
		deviceRows = append(deviceRows, []interface{}{
			d.Name, string(d.Type), string(d.BatteryShape), d.BatteryCount, d.HasBatteries,
			weeks, formatTime(d.LastBatteryChange), formatTime(device.BatteryEndOfLife(d)),
		})
	}

	sheets := []struct {
		name   string
		header []interface{}
		rows   [][]interface{}
	}{
		{SheetGroups, []interface{}{"name", "shape", "kind", "count", "voltage", "notes", "created_at"}, groupRows},
		{SheetBatteries, []interface{}{"group", "slot", "status", "device", "last_changed_at"}, batteryRows},
		{SheetDevices, []interface{}{"name", "type", "battery_shape", "battery_count", "has_batteries", "battery_life_weeks", "last_battery_change", "end_of_life"}, deviceRows},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.header, sh.rows); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address %s row %d: %w", sheet, i+2, err)
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
