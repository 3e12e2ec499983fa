package plan

import (
	"context"
	"errors"
	"testing"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	models := append(inventory.Models(), &UserPlan{})
	db := testutil.NewDB(t, models...)
	return NewService(db), db
}

func addGroups(t *testing.T, db *gorm.DB, userID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		g := inventory.BatteryGroup{Name: "g", Shape: inventory.ShapeAA, Kind: inventory.KindDisposable, Count: 1}
		g.UserID = userID
		if err := db.Create(&g).Error; err != nil {
			t.Fatalf("create group: %v", err)
		}
	}
}

func TestGetPlanCreatesFree(t *testing.T) {
	svc, _ := newTestService(t)
	userID := uuid.New()

	p, err := svc.GetPlan(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if p.PublicTier() != TierFree || p.MaxBatteryGroups != 3 || p.MaxDevices != 3 {
		t.Fatalf("expected free 3/3 plan, got %s %d/%d", p.PublicTier(), p.MaxBatteryGroups, p.MaxDevices)
	}
	again, err := svc.GetPlan(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetPlan again: %v", err)
	}
	if !again.CreatedAt.Equal(p.CreatedAt) {
		t.Fatal("expected the same plan row on second access")
	}
}

func TestCheckGroupLimit(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	addGroups(t, db, userID, 2)
	if err := svc.CheckGroupLimit(ctx, userID); err != nil {
		t.Fatalf("expected room for a third group, got %v", err)
	}
	addGroups(t, db, userID, 1)
	if err := svc.CheckGroupLimit(ctx, userID); !errors.Is(err, common.ErrPlanLimitReached) {
		t.Fatalf("expected ErrPlanLimitReached, got %v", err)
	}

	if _, err := svc.ChangeTier(ctx, userID, TierStandard); err != nil {
		t.Fatalf("ChangeTier: %v", err)
	}
	if err := svc.CheckGroupLimit(ctx, userID); err != nil {
		t.Fatalf("expected room after upgrade, got %v", err)
	}

	usage, err := svc.Usage(ctx, userID)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage.Tier != TierStandard || usage.BatteryGroups.Used != 3 || usage.BatteryGroups.Limit != 12 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if err := svc.CheckDeviceLimit(ctx, userID); err != nil {
		t.Fatalf("expected room for devices, got %v", err)
	}
}
