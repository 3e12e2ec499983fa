package battery

import (
	"context"
	"errors"
	"fmt"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/media"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanChecker gates creation of new groups
type PlanChecker interface {
	CheckGroupLimit(ctx context.Context, userID uuid.UUID) error
}

// ImageStore stores group images
type ImageStore interface {
	UploadImage(ctx context.Context, bucket string, ownerID, entityID uuid.UUID, up *media.Upload) (string, error)
	DeleteImage(ctx context.Context, bucket, path string) error
	ImageURL(ctx context.Context, bucket string, path *string) string
}

// Service handles battery groups and units
type Service struct {
	db     *gorm.DB
	plans  PlanChecker
	images ImageStore
}

// NewService creates a new battery service. plans and images may be nil,
// which disables quota checks and image handling respectively.
func NewService(db *gorm.DB, plans PlanChecker, images ImageStore) *Service {
	return &Service{
		db:     db,
		plans:  plans,
		images: images,
	}
}

// CreateGroup registers a pack and creates its units with slots 1..count.
// A failing image upload does not undo the group; the response carries a
// warning instead.
func (s *Service) CreateGroup(ctx context.Context, userID uuid.UUID, req *CreateGroupRequest, img *media.Upload) (*GroupInfo, error) {
	shape, err := inventory.ParseShape(req.Shape)
	if err != nil {
		return nil, err
	}
	kind, err := inventory.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if req.Count < 1 || req.Count > MaxGroupCount {
		return nil, fmt.Errorf("count must be between 1 and %d: %w", MaxGroupCount, common.ErrValidation)
	}
	if s.plans != nil {
		if err := s.plans.CheckGroupLimit(ctx, userID); err != nil {
			return nil, err
		}
	}

	group := inventory.BatteryGroup{
		Name:    req.Name,
		Shape:   shape,
		Kind:    kind,
		Count:   req.Count,
		Voltage: req.Voltage,
		Notes:   req.Notes,
	}
	group.UserID = userID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&group).Error; err != nil {
			return fmt.Errorf("failed to create battery group: %w", err)
		}
		units := newUnits(&group, NextSlots(nil, req.Count))
		if err := tx.Create(&units).Error; err != nil {
			return fmt.Errorf("failed to create batteries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	warning := ""
	if img != nil {
		if _, err := s.SetGroupImage(ctx, userID, group.ID, img); err != nil {
			log.WithError(err).Warnf("⚠️ image upload failed for new group %s", group.ID)
			warning = "image upload failed: " + err.Error()
		}
	}

	info, err := s.GetGroup(ctx, userID, group.ID)
	if err != nil {
		return nil, err
	}
	info.ImageWarning = warning
	log.Infof("🔋 battery group created: user=%s group=%s count=%d", userID, group.ID, group.Count)
	return info, nil
}

// ListGroups returns the user's groups filtered and sorted in memory.
func (s *Service) ListGroups(ctx context.Context, userID uuid.UUID, f GroupFilter, key SortKey, desc bool) (*GetGroupsResponse, error) {
	var groups []inventory.BatteryGroup
	if err := s.db.WithContext(ctx).
		Preload("Batteries", func(db *gorm.DB) *gorm.DB { return db.Order("slot_number ASC") }).
		Where("user_id = ?", userID).
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to get battery groups: %w", err)
	}

	groups = FilterGroups(groups, f)
	SortGroups(groups, key, desc)

	infos := make([]GroupInfo, 0, len(groups))
	for _, g := range groups {
		infos = append(infos, s.toGroupInfo(ctx, g))
	}
	return &GetGroupsResponse{Groups: infos}, nil
}

// GetGroup returns one group with its units
func (s *Service) GetGroup(ctx context.Context, userID, groupID uuid.UUID) (*GroupInfo, error) {
	group, err := s.loadGroup(s.db.WithContext(ctx), userID, groupID, false)
	if err != nil {
		return nil, err
	}
	info := s.toGroupInfo(ctx, *group)
	return &info, nil
}

// UpdateGroup edits a group and rebalances its units to the new count.
// Shrinking keeps installed units and the lowest idle slots; it is
// rejected without any change when installed units would have to go.
func (s *Service) UpdateGroup(ctx context.Context, userID, groupID uuid.UUID, req *UpdateGroupRequest) (*GroupInfo, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.loadGroup(tx, userID, groupID, true)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			if *req.Name == "" {
				return fmt.Errorf("name must not be empty: %w", common.ErrValidation)
			}
			updates["name"] = *req.Name
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if req.Voltage != nil {
			updates["voltage"] = *req.Voltage
		}
		if req.Shape != nil {
			shape, err := inventory.ParseShape(*req.Shape)
			if err != nil {
				return err
			}
			if shape != group.Shape {
				if err := s.checkInstalledFit(tx, group, shape); err != nil {
					return err
				}
			}
			updates["shape"] = shape
		}
		kindChangedToDisposable := false
		if req.Kind != nil {
			kind, err := inventory.ParseKind(*req.Kind)
			if err != nil {
				return err
			}
			kindChangedToDisposable = kind == inventory.KindDisposable && group.Kind != kind
			updates["kind"] = kind
			group.Kind = kind
		}

		if req.Count != nil {
			if err := s.rebalance(tx, group, *req.Count); err != nil {
				return err
			}
			updates["count"] = *req.Count
		}

		if kindChangedToDisposable {
			now := common.Now()
			if err := tx.Model(&inventory.Battery{}).
				Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, inventory.StatusCharged).
				Updates(map[string]interface{}{"status": inventory.StatusEmpty, "last_changed_at": now}).Error; err != nil {
				return fmt.Errorf("failed to reset charged batteries: %w", err)
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(group).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update battery group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, userID, groupID)
}

// checkInstalledFit rejects a shape that no longer fits the devices the
// group's installed units sit in.
func (s *Service) checkInstalledFit(tx *gorm.DB, group *inventory.BatteryGroup, shape inventory.Shape) error {
	var deviceIDs []uuid.UUID
	for _, b := range group.Batteries {
		if b.DeviceID != nil {
			deviceIDs = append(deviceIDs, *b.DeviceID)
		}
	}
	if len(deviceIDs) == 0 {
		return nil
	}
	var devices []inventory.Device
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id IN ?", group.UserID, deviceIDs).
		Find(&devices).Error; err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}
	for _, d := range devices {
		if !shape.Fits(d.BatteryShape) {
			return fmt.Errorf("%s batteries do not fit device %q (%s): %w", shape, d.Name, d.BatteryShape, common.ErrConflict)
		}
	}
	return nil
}

// rebalance inserts or deletes units so the group holds exactly newCount.
func (s *Service) rebalance(tx *gorm.DB, group *inventory.BatteryGroup, newCount int) error {
	if newCount < 1 || newCount > MaxGroupCount {
		return fmt.Errorf("count must be between 1 and %d: %w", MaxGroupCount, common.ErrValidation)
	}
	current := len(group.Batteries)
	switch {
	case newCount > current:
		units := newUnits(group, NextSlots(group.Batteries, newCount-current))
		if err := tx.Create(&units).Error; err != nil {
			return fmt.Errorf("failed to add batteries: %w", err)
		}
	case newCount < current:
		_, remove, err := ShrinkPlan(group.Batteries, newCount)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(remove))
		for _, b := range remove {
			ids = append(ids, b.ID)
		}
		if err := tx.Where("user_id = ? AND battery_id IN ?", group.UserID, ids).
			Delete(&inventory.UsageHistoryRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete battery history: %w", err)
		}
		if err := tx.Where("user_id = ? AND id IN ? AND device_id IS NULL", group.UserID, ids).
			Delete(&inventory.Battery{}).Error; err != nil {
			return fmt.Errorf("failed to delete batteries: %w", err)
		}
	}
	return nil
}

// DeleteGroup removes a group, its units and their history. Installed units
// are pulled out of their devices first. Image removal failures are logged
// only.
func (s *Service) DeleteGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	var imagePath *string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.loadGroup(tx, userID, groupID, true)
		if err != nil {
			return err
		}
		imagePath = group.ImagePath

		ids := make([]uuid.UUID, 0, len(group.Batteries))
		for _, b := range group.Batteries {
			ids = append(ids, b.ID)
		}
		if err := inventory.DetachBatteries(tx, userID, ids, inventory.StatusEmpty, common.Now()); err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Where("user_id = ? AND battery_id IN ?", userID, ids).
				Delete(&inventory.UsageHistoryRecord{}).Error; err != nil {
				return fmt.Errorf("failed to delete battery history: %w", err)
			}
		}
		if err := tx.Where("user_id = ? AND group_id = ?", userID, groupID).
			Delete(&inventory.Battery{}).Error; err != nil {
			return fmt.Errorf("failed to delete batteries: %w", err)
		}
		if err := tx.Delete(group).Error; err != nil {
			return fmt.Errorf("failed to delete battery group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.images != nil && imagePath != nil {
		if err := s.images.DeleteImage(ctx, media.BucketBatteryImages, *imagePath); err != nil {
			log.WithError(err).Warnf("⚠️ image of deleted group %s left behind", groupID)
		}
	}
	log.Infof("🗑️ battery group deleted: user=%s group=%s", userID, groupID)
	return nil
}

// SetGroupImage uploads a new image for the group and stores its path.
func (s *Service) SetGroupImage(ctx context.Context, userID, groupID uuid.UUID, img *media.Upload) (*GroupInfo, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured: %w", common.ErrInvalidImage)
	}
	group, err := s.loadGroup(s.db.WithContext(ctx), userID, groupID, false)
	if err != nil {
		return nil, err
	}
	path, err := s.images.UploadImage(ctx, media.BucketBatteryImages, userID, groupID, img)
	if err != nil {
		return nil, err
	}
	if group.ImagePath != nil && *group.ImagePath != path {
		if err := s.images.DeleteImage(ctx, media.BucketBatteryImages, *group.ImagePath); err != nil {
			log.WithError(err).Warnf("⚠️ previous image of group %s left behind", groupID)
		}
	}
	if err := s.db.WithContext(ctx).Model(group).Omit(clause.Associations).Update("image_path", path).Error; err != nil {
		return nil, fmt.Errorf("failed to save image path: %w", err)
	}
	return s.GetGroup(ctx, userID, groupID)
}

// ListBatteries returns the user's units with their group for the
// selection screen.
func (s *Service) ListBatteries(ctx context.Context, userID uuid.UUID, f BatteryFilter) (*GetBatteriesResponse, error) {
	var batteries []inventory.Battery
	if err := s.db.WithContext(ctx).
		Preload("Group").
		Where("user_id = ?", userID).
		Order("group_id ASC, slot_number ASC").
		Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to get batteries: %w", err)
	}

	batteries = FilterBatteries(batteries, f)
	infos := make([]BatteryInfo, 0, len(batteries))
	for _, b := range batteries {
		infos = append(infos, toBatteryInfo(b))
	}
	return &GetBatteriesResponse{Batteries: infos}, nil
}

// SetBatteryStatus applies a manual status change. Marking an installed
// unit empty or disposed takes it out of its device.
func (s *Service) SetBatteryStatus(ctx context.Context, userID, batteryID uuid.UUID, status inventory.Status) (*BatteryInfo, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b inventory.Battery
		if err := tx.Preload("Group").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", batteryID, userID).
			First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("battery %s: %w", batteryID, common.ErrNotFoundOrForbidden)
			}
			return fmt.Errorf("failed to get battery: %w", err)
		}
		if b.Group == nil {
			return fmt.Errorf("battery %s has no group: %w", batteryID, common.ErrNotFoundOrForbidden)
		}

		next, err := Transition(b.Group.Kind, b.Status, status)
		if err != nil {
			return err
		}
		if next == b.Status {
			return nil
		}

		now := common.Now()
		if b.Installed() {
			return inventory.DetachBatteries(tx, userID, []uuid.UUID{b.ID}, next, now)
		}
		updates := map[string]interface{}{
			"status":          next,
			"last_changed_at": now,
		}
		if next == inventory.StatusCharged {
			updates["last_checked_at"] = now
		}
		if err := tx.Model(&b).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update battery status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var b inventory.Battery
	if err := s.db.WithContext(ctx).Preload("Group").Where("id = ? AND user_id = ?", batteryID, userID).First(&b).Error; err != nil {
		return nil, fmt.Errorf("failed to reload battery: %w", err)
	}
	info := toBatteryInfo(b)
	return &info, nil
}

// MarkAllEmpty marks every charged or in-use unit of a group empty.
func (s *Service) MarkAllEmpty(ctx context.Context, userID, groupID uuid.UUID) (*GroupInfo, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.loadGroup(tx, userID, groupID, true)
		if err != nil {
			return err
		}
		now := common.Now()
		var installed, idle []uuid.UUID
		for _, b := range group.Batteries {
			if b.Status != inventory.StatusCharged && b.Status != inventory.StatusInUse {
				continue
			}
			if b.Installed() {
				installed = append(installed, b.ID)
			} else {
				idle = append(idle, b.ID)
			}
		}
		if err := inventory.DetachBatteries(tx, userID, installed, inventory.StatusEmpty, now); err != nil {
			return err
		}
		if len(idle) == 0 {
			return nil
		}
		return tx.Model(&inventory.Battery{}).
			Where("user_id = ? AND id IN ?", userID, idle).
			Updates(map[string]interface{}{"status": inventory.StatusEmpty, "last_changed_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, userID, groupID)
}

// Helper methods

func (s *Service) loadGroup(db *gorm.DB, userID, groupID uuid.UUID, lock bool) (*inventory.BatteryGroup, error) {
	q := db.Preload("Batteries", func(db *gorm.DB) *gorm.DB { return db.Order("slot_number ASC") })
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group inventory.BatteryGroup
	if err := q.Where("id = ? AND user_id = ?", groupID, userID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("battery group %s: %w", groupID, common.ErrNotFoundOrForbidden)
		}
		return nil, fmt.Errorf("failed to get battery group: %w", err)
	}
	return &group, nil
}

func (s *Service) toGroupInfo(ctx context.Context, g inventory.BatteryGroup) GroupInfo {
	info := GroupInfo{
		BatteryGroup: g,
		StatusCounts: map[inventory.Status]int{},
	}
	for _, b := range g.Batteries {
		info.StatusCounts[b.Status]++
		if b.Installed() {
			info.InstalledCount++
		}
	}
	if s.images != nil {
		info.ImageURL = s.images.ImageURL(ctx, media.BucketBatteryImages, g.ImagePath)
	}
	return info
}

func newUnits(group *inventory.BatteryGroup, slots []int) []inventory.Battery {
	now := common.Now()
	units := make([]inventory.Battery, 0, len(slots))
	for _, slot := range slots {
		b := inventory.Battery{
			GroupID:       group.ID,
			SlotNumber:    slot,
			Status:        inventory.InitialStatus(group.Kind),
			LastChangedAt: &now,
		}
		b.UserID = group.UserID
		units = append(units, b)
	}
	return units
}
