package battery

import (
	"fmt"
	"sort"
	"strings"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
)

// GroupFilter - list screen facets. Zero values match everything.
type GroupFilter struct {
	Query string
	Kind  inventory.Kind
	Shape inventory.Shape
}

// SortKey - list ordering
type SortKey string

const (
	SortCreatedAt SortKey = "created_at"
	SortName      SortKey = "name"
)

// FilterGroups keeps the groups matching every set facet. The free-text
// query matches name or notes, case-insensitively.
func FilterGroups(groups []inventory.BatteryGroup, f GroupFilter) []inventory.BatteryGroup {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]inventory.BatteryGroup, 0, len(groups))
	for _, g := range groups {
		if f.Kind != "" && g.Kind != f.Kind {
			continue
		}
		if f.Shape != "" && g.Shape != f.Shape {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Name), q) && !strings.Contains(strings.ToLower(g.Notes), q) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// SortGroups orders groups in place. Ties fall back to ID so the result
// does not depend on input order.
func SortGroups(groups []inventory.BatteryGroup, key SortKey, desc bool) {
	less := func(a, b inventory.BatteryGroup) bool {
		switch key {
		case SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID.String() < b.ID.String()
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if desc {
			return less(groups[j], groups[i])
		}
		return less(groups[i], groups[j])
	})
}

// BatteryFilter - facets of the battery selection screen
type BatteryFilter struct {
	Query     string
	Installed *bool
	Status    inventory.Status
	Shape     inventory.Shape
	Kind      inventory.Kind
}

// FilterBatteries keeps the units matching every set facet. Units must have
// their Group loaded for shape/kind/query matching.
func FilterBatteries(batteries []inventory.Battery, f BatteryFilter) []inventory.Battery {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]inventory.Battery, 0, len(batteries))
	for _, b := range batteries {
		if f.Installed != nil && b.Installed() != *f.Installed {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if b.Group != nil {
			if f.Shape != "" && b.Group.Shape != f.Shape {
				continue
			}
			if f.Kind != "" && b.Group.Kind != f.Kind {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(b.Group.Name), q) {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// PartitionInstalled splits units into those sitting in a device and idle
// ones, preserving order.
func PartitionInstalled(batteries []inventory.Battery) (installed, idle []inventory.Battery) {
	for _, b := range batteries {
		if b.Installed() {
			installed = append(installed, b)
		} else {
			idle = append(idle, b)
		}
	}
	return installed, idle
}

// ShrinkPlan decides which units survive when a group's count drops to
// newCount. Installed units are always kept; the remaining places go to
// idle units with the lowest slot numbers. If more units are installed than
// newCount allows, ErrShrinkInstalled is returned and nothing is planned.
func ShrinkPlan(units []inventory.Battery, newCount int) (keep, remove []inventory.Battery, err error) {
	installed, idle := PartitionInstalled(units)
	if len(installed) > newCount {
		return nil, nil, fmt.Errorf("%d installed, requested %d: %w", len(installed), newCount, common.ErrShrinkInstalled)
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].SlotNumber < idle[j].SlotNumber })

	idleKept := newCount - len(installed)
	if idleKept > len(idle) {
		idleKept = len(idle)
	}
	keep = append(keep, installed...)
	keep = append(keep, idle[:idleKept]...)
	remove = append(remove, idle[idleKept:]...)
	sort.Slice(keep, func(i, j int) bool { return keep[i].SlotNumber < keep[j].SlotNumber })
	return keep, remove, nil
}

// NextSlots returns the n lowest slot numbers not used by existing.
func NextSlots(existing []inventory.Battery, n int) []int {
	used := make(map[int]bool, len(existing))
	for _, b := range existing {
		used[b.SlotNumber] = true
	}
	slots := make([]int, 0, n)
	for slot := 1; len(slots) < n; slot++ {
		if !used[slot] {
			slots = append(slots, slot)
		}
	}
	return slots
}

// Transition applies a manual status change to a unit of the given kind
// and returns the resulting status. Asking a disposable unit to become
// charged is a no-op: the current status is returned without error.
func Transition(kind inventory.Kind, from, to inventory.Status) (inventory.Status, error) {
	if !to.Valid() {
		return from, fmt.Errorf("unknown status %q: %w", to, common.ErrValidation)
	}
	if from == to {
		return from, nil
	}
	switch to {
	case inventory.StatusInUse:
		// only the assignment workflow puts batteries into devices
		return from, fmt.Errorf("%s -> %s requires assigning to a device: %w", from, to, common.ErrInvalidTransition)
	case inventory.StatusEmpty:
		if from == inventory.StatusInUse || from == inventory.StatusCharged {
			return to, nil
		}
	case inventory.StatusDisposed:
		return to, nil
	case inventory.StatusCharged:
		if kind == inventory.KindDisposable {
			return from, nil
		}
		if from == inventory.StatusEmpty {
			return to, nil
		}
	}
	return from, fmt.Errorf("%s -> %s: %w", from, to, common.ErrInvalidTransition)
}
