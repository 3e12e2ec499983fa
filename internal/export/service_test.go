package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"battdevy/internal/inventory"
	"battdevy/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	db := testutil.NewDB(t, inventory.Models()...)
	svc := NewService(db)
	userID := uuid.New()

	group := inventory.BatteryGroup{Name: "Eneloop AA", Shape: inventory.ShapeAA, Kind: inventory.KindRechargeable, Count: 2, Voltage: 1.2}
	group.UserID = userID
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	changed := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	weeks := 2
	dev := inventory.Device{Name: "Mouse", Type: inventory.DeviceGadget, BatteryShape: inventory.ShapeAA, BatteryCount: 2, HasBatteries: true, LastBatteryChange: &changed, BatteryLifeWeeks: &weeks}
	dev.UserID = userID
	if err := db.Create(&dev).Error; err != nil {
		t.Fatalf("create device: %v", err)
	}
	for slot := 1; slot <= 2; slot++ {
		b := inventory.Battery{GroupID: group.ID, SlotNumber: slot, Status: inventory.StatusCharged}
		if slot == 1 {
			b.Status = inventory.StatusInUse
			b.DeviceID = &dev.ID
		}
		b.UserID = userID
		if err := db.Create(&b).Error; err != nil {
			t.Fatalf("create battery: %v", err)
		}
	}
	// another user's data must not leak into the export
	other := inventory.BatteryGroup{Name: "Foreign", Shape: inventory.ShapeD, Kind: inventory.KindDisposable, Count: 1}
	other.UserID = uuid.New()
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("create foreign group: %v", err)
	}

	buf := &bytes.Buffer{}
	if err := svc.Write(context.Background(), userID, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	if diff := cmp.Diff([]string{SheetGroups, SheetBatteries, SheetDevices}, f.GetSheetList()); diff != "" {
		t.Fatalf("sheet list mismatch (-want +got):\n%s", diff)
	}

	groups, err := f.GetRows(SheetGroups)
	if err != nil {
		t.Fatalf("read groups: %v", err)
	}
	if len(groups) != 2 || groups[1][0] != "Eneloop AA" {
		t.Fatalf("expected header + 1 group, got %v", groups)
	}

	batteries, err := f.GetRows(SheetBatteries)
	if err != nil {
		t.Fatalf("read batteries: %v", err)
	}
	if len(batteries) != 3 || batteries[1][3] != "Mouse" {
		t.Fatalf("expected slot 1 installed in Mouse, got %v", batteries)
	}

	devices, err := f.GetRows(SheetDevices)
	if err != nil {
		t.Fatalf("read devices: %v", err)
	}
	if len(devices) != 2 || devices[1][7] != "2024-04-15 08:00" {
		t.Fatalf("expected end of life 2024-04-15 08:00, got %v", devices)
	}
}
