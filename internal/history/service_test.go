package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/testutil"

	"github.com/google/uuid"
)

func TestListNewestFirst(t *testing.T) {
	db := testutil.NewDB(t, inventory.Models()...)
	svc := NewService(db)
	ctx := context.Background()
	userID := uuid.New()

	group := inventory.BatteryGroup{Name: "Eneloop", Shape: inventory.ShapeAA, Kind: inventory.KindRechargeable, Count: 1}
	group.UserID = userID
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	battery := inventory.Battery{GroupID: group.ID, SlotNumber: 1, Status: inventory.StatusEmpty}
	battery.UserID = userID
	if err := db.Create(&battery).Error; err != nil {
		t.Fatalf("create battery: %v", err)
	}
	device := inventory.Device{Name: "Mouse", Type: inventory.DeviceGadget, BatteryShape: inventory.ShapeAA, BatteryCount: 1}
	device.UserID = userID
	if err := db.Create(&device).Error; err != nil {
		t.Fatalf("create device: %v", err)
	}

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		started := base.AddDate(0, i, 0)
		ended := started.AddDate(0, 0, 20)
		rec := inventory.UsageHistoryRecord{UserID: userID, BatteryID: battery.ID, DeviceID: device.ID, StartedAt: started, EndedAt: &ended}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("create history: %v", err)
		}
	}

	byDevice, err := svc.ListByDevice(ctx, userID, device.ID)
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(byDevice.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(byDevice.Entries))
	}
	for i := 1; i < len(byDevice.Entries); i++ {
		if byDevice.Entries[i].StartedAt.After(byDevice.Entries[i-1].StartedAt) {
			t.Fatalf("entries not newest first at %d", i)
		}
	}
	if byDevice.Entries[0].GroupName != "Eneloop" || byDevice.Entries[0].DeviceName != "Mouse" {
		t.Fatalf("expected names resolved, got %+v", byDevice.Entries[0])
	}

	byBattery, err := svc.ListByBattery(ctx, userID, battery.ID)
	if err != nil {
		t.Fatalf("ListByBattery: %v", err)
	}
	if len(byBattery.Entries) != 3 || !byBattery.Entries[0].StartedAt.Equal(base.AddDate(0, 2, 0)) {
		t.Fatalf("expected newest entry first, got %+v", byBattery.Entries)
	}

	if _, err := svc.ListByDevice(ctx, uuid.New(), device.ID); !errors.Is(err, common.ErrNotFoundOrForbidden) {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
}
