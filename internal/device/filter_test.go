package device

import (
	"testing"
	"time"

	"battdevy/internal/inventory"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestBatteryEndOfLife(t *testing.T) {
	changed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		device inventory.Device
		want   *time.Time
	}{
		{"both set", inventory.Device{LastBatteryChange: &changed, BatteryLifeWeeks: intPtr(4)}, timePtr(changed.AddDate(0, 0, 28))},
		{"no change date", inventory.Device{BatteryLifeWeeks: intPtr(4)}, nil},
		{"no life", inventory.Device{LastBatteryChange: &changed}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BatteryEndOfLife(&tc.device)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("end of life mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if BatteryEndOfLife(nil) != nil {
		t.Fatal("expected nil for nil device")
	}
}

func TestSortDevicesByEndOfLifeUndatedLast(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string, weeks *int) inventory.Device {
		d := inventory.Device{Name: name, BatteryLifeWeeks: weeks, LastBatteryChange: &base}
		d.ID = uuid.New()
		return d
	}
	devices := []inventory.Device{mk("none", nil), mk("late", intPtr(10)), mk("soon", intPtr(1))}

	SortDevices(devices, SortEndOfLife, false)
	if got := names(devices); !cmp.Equal(got, []string{"soon", "late", "none"}) {
		t.Fatalf("asc order: got %v", got)
	}
	SortDevices(devices, SortEndOfLife, true)
	if got := names(devices); !cmp.Equal(got, []string{"late", "soon", "none"}) {
		t.Fatalf("desc order: got %v", got)
	}
}

func TestFilterDevices(t *testing.T) {
	yes := true
	devices := []inventory.Device{
		{Name: "TV remote", Type: inventory.DeviceRemoteControl, BatteryShape: inventory.ShapeAAA, HasBatteries: true},
		{Name: "Kitchen scale", Type: inventory.DeviceGadget, BatteryShape: inventory.ShapeCR2032, Notes: "remote-less"},
		{Name: "Torch", Type: inventory.DeviceLight, BatteryShape: inventory.ShapeD, HasBatteries: true},
	}

	got := FilterDevices(devices, Filter{Query: "REMOTE"})
	if !cmp.Equal(names(got), []string{"TV remote", "Kitchen scale"}) {
		t.Fatalf("query filter: got %v", names(got))
	}
	got = FilterDevices(devices, Filter{HasBatteries: &yes, Type: inventory.DeviceLight})
	if !cmp.Equal(names(got), []string{"Torch"}) {
		t.Fatalf("facet filter: got %v", names(got))
	}
}

func TestParseSortKey(t *testing.T) {
	if k, ok := ParseSortKey(""); !ok || k != SortCreatedAt {
		t.Fatalf("expected created_at default, got %q %v", k, ok)
	}
	if _, ok := ParseSortKey("weight"); ok {
		t.Fatal("expected unknown sort key rejected")
	}
}

func names(devices []inventory.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Name)
	}
	return out
}
