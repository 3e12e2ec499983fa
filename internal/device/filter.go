package device

import (
	"sort"
	"strings"
	"time"

	"battdevy/internal/inventory"
)

// BatteryEndOfLife estimates when the installed batteries run out:
// last battery change plus the expected life in weeks. Nil when either
// value is unknown.
func BatteryEndOfLife(d *inventory.Device) *time.Time {
	if d == nil || d.LastBatteryChange == nil || d.BatteryLifeWeeks == nil {
		return nil
	}
	eol := d.LastBatteryChange.AddDate(0, 0, *d.BatteryLifeWeeks*7)
	return &eol
}

// Filter - device list facets. Zero values match everything.
type Filter struct {
	Query        string
	Type         inventory.DeviceType
	Shape        inventory.Shape
	HasBatteries *bool
}

// SortKey - device list ordering
type SortKey string

const (
	SortCreatedAt SortKey = "created_at"
	SortName      SortKey = "name"
	SortEndOfLife SortKey = "end_of_life"
)

// ParseSortKey accepts "" as created_at.
func ParseSortKey(v string) (SortKey, bool) {
	switch SortKey(v) {
	case "", SortCreatedAt:
		return SortCreatedAt, true
	case SortName:
		return SortName, true
	case SortEndOfLife:
		return SortEndOfLife, true
	}
	return "", false
}

// FilterDevices keeps the devices matching every set facet. The free-text
// query matches name or notes, case-insensitively.
func FilterDevices(devices []inventory.Device, f Filter) []inventory.Device {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]inventory.Device, 0, len(devices))
	for _, d := range devices {
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Shape != "" && d.BatteryShape != f.Shape {
			continue
		}
		if f.HasBatteries != nil && d.HasBatteries != *f.HasBatteries {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Notes), q) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SortDevices orders devices in place. Devices without an end-of-life
// date sort after dated ones in both directions; ties fall back to ID.
func SortDevices(devices []inventory.Device, key SortKey, desc bool) {
	cmp := func(a, b *inventory.Device) int {
		switch key {
		case SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an < bn {
				return -1
			} else if an > bn {
				return 1
			}
		case SortEndOfLife:
			ea, eb := BatteryEndOfLife(a), BatteryEndOfLife(b)
			switch {
			case ea != nil && eb != nil && !ea.Equal(*eb):
				if ea.Before(*eb) {
					return -1
				}
				return 1
			case ea != nil && eb == nil:
				return -2
			case ea == nil && eb != nil:
				return 2
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				if a.CreatedAt.Before(b.CreatedAt) {
					return -1
				}
				return 1
			}
		}
		as, bs := a.ID.String(), b.ID.String()
		if as < bs {
			return -1
		} else if as > bs {
			return 1
		}
		return 0
	}
	sort.SliceStable(devices, func(i, j int) bool {
		c := cmp(&devices[i], &devices[j])
		// +-2 marks undated devices, which stay last regardless of order
		if c == -2 || c == 2 {
			return c < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}
