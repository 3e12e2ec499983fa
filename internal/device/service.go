package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/media"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanChecker gates creation of new devices
type PlanChecker interface {
	CheckDeviceLimit(ctx context.Context, userID uuid.UUID) error
}

// ImageStore stores device images
type ImageStore interface {
	UploadImage(ctx context.Context, bucket string, ownerID, entityID uuid.UUID, up *media.Upload) (string, error)
	DeleteImage(ctx context.Context, bucket, path string) error
	ImageURL(ctx context.Context, bucket string, path *string) string
}

// Service handles devices
type Service struct {
	db     *gorm.DB
	plans  PlanChecker
	images ImageStore
}

// NewService creates a new device service. plans and images may be nil.
func NewService(db *gorm.DB, plans PlanChecker, images ImageStore) *Service {
	return &Service{
		db:     db,
		plans:  plans,
		images: images,
	}
}

// CreateDevice registers a device. A failing image upload leaves the
// device in place and is reported as a warning.
func (s *Service) CreateDevice(ctx context.Context, userID uuid.UUID, req *CreateDeviceRequest, img *media.Upload) (*DeviceInfo, error) {
	deviceType, err := inventory.ParseDeviceType(req.Type)
	if err != nil {
		return nil, err
	}
	shape, err := inventory.ParseShape(req.BatteryShape)
	if err != nil {
		return nil, err
	}
	if err := validCount(req.BatteryCount); err != nil {
		return nil, err
	}
	purchase, err := parseDate(req.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if s.plans != nil {
		if err := s.plans.CheckDeviceLimit(ctx, userID); err != nil {
			return nil, err
		}
	}

	device := inventory.Device{
		Name:             req.Name,
		Type:             deviceType,
		BatteryShape:     shape,
		BatteryCount:     req.BatteryCount,
		BatteryLifeWeeks: req.BatteryLifeWeeks,
		PurchaseDate:     purchase,
		Notes:            req.Notes,
	}
	device.UserID = userID
	if err := s.db.WithContext(ctx).Create(&device).Error; err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	warning := ""
	if img != nil {
		if _, err := s.SetDeviceImage(ctx, userID, device.ID, img); err != nil {
			log.WithError(err).Warnf("⚠️ image upload failed for new device %s", device.ID)
			warning = "image upload failed: " + err.Error()
		}
	}

	info, err := s.GetDevice(ctx, userID, device.ID)
	if err != nil {
		return nil, err
	}
	info.ImageWarning = warning
	log.Infof("📟 device created: user=%s device=%s", userID, device.ID)
	return info, nil
}

// ListDevices returns the user's devices filtered and sorted in memory.
func (s *Service) ListDevices(ctx context.Context, userID uuid.UUID, f Filter, key SortKey, desc bool) (*GetDevicesResponse, error) {
	var devices []inventory.Device
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	devices = FilterDevices(devices, f)
	SortDevices(devices, key, desc)

	installed, err := s.installedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		infos = append(infos, s.toDeviceInfo(ctx, &devices[i], installed[devices[i].ID]))
	}
	return &GetDevicesResponse{Devices: infos}, nil
}

// GetDevice returns one device with its installed batteries
func (s *Service) GetDevice(ctx context.Context, userID, deviceID uuid.UUID) (*DeviceInfo, error) {
	device, err := Load(s.db.WithContext(ctx), userID, deviceID, false)
	if err != nil {
		return nil, err
	}
	var batteries []inventory.Battery
	if err := s.db.WithContext(ctx).Preload("Group").
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Order("slot_number ASC").
		Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to get installed batteries: %w", err)
	}
	info := s.toDeviceInfo(ctx, device, batteries)
	return &info, nil
}

// UpdateDevice edits a device. Slot count and shape may only change in
// ways the currently installed batteries still satisfy.
func (s *Service) UpdateDevice(ctx context.Context, userID, deviceID uuid.UUID, req *UpdateDeviceRequest) (*DeviceInfo, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		device, err := Load(tx, userID, deviceID, true)
		if err != nil {
			return err
		}
		var installed []inventory.Battery
		if err := tx.Preload("Group").Where("user_id = ? AND device_id = ?", userID, deviceID).Find(&installed).Error; err != nil {
			return fmt.Errorf("failed to get installed batteries: %w", err)
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return fmt.Errorf("name must not be empty: %w", common.ErrValidation)
			}
			updates["name"] = *req.Name
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if req.Type != nil {
			t, err := inventory.ParseDeviceType(*req.Type)
			if err != nil {
				return err
			}
			updates["type"] = t
		}
		if req.BatteryShape != nil {
			shape, err := inventory.ParseShape(*req.BatteryShape)
			if err != nil {
				return err
			}
			for _, b := range installed {
				if b.Group != nil && !b.Group.Shape.Fits(shape) {
					return fmt.Errorf("installed %s batteries do not fit %s: %w", b.Group.Shape, shape, common.ErrConflict)
				}
			}
			updates["battery_shape"] = shape
		}
		if req.BatteryCount != nil {
			if err := validCount(*req.BatteryCount); err != nil {
				return err
			}
			if *req.BatteryCount < len(installed) {
				return fmt.Errorf("%d batteries installed, requested %d slots: %w", len(installed), *req.BatteryCount, common.ErrShrinkInstalled)
			}
			updates["battery_count"] = *req.BatteryCount
		}
		if req.BatteryLifeWeeks != nil {
			updates["battery_life_weeks"] = *req.BatteryLifeWeeks
		}
		if req.PurchaseDate != nil {
			purchase, err := parseDate(*req.PurchaseDate)
			if err != nil {
				return err
			}
			updates["purchase_date"] = purchase
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(device).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetDevice(ctx, userID, deviceID)
}

// DeleteDevice removes a device. Installed batteries are detached and
// marked empty, open history is closed and the image removed (failure is
// logged only).
func (s *Service) DeleteDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	var imagePath *string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		device, err := Load(tx, userID, deviceID, true)
		if err != nil {
			return err
		}
		imagePath = device.ImagePath

		now := common.Now()
		if err := inventory.CloseDeviceHistory(tx, userID, deviceID, now); err != nil {
			return err
		}
		if _, err := inventory.DetachDevice(tx, userID, deviceID, now); err != nil {
			return err
		}
		if err := tx.Delete(device).Error; err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.images != nil && imagePath != nil {
		if err := s.images.DeleteImage(ctx, media.BucketDeviceImages, *imagePath); err != nil {
			log.WithError(err).Warnf("⚠️ image of deleted device %s left behind", deviceID)
		}
	}
	log.Infof("🗑️ device deleted: user=%s device=%s", userID, deviceID)
	return nil
}

// SetDeviceImage uploads a new image for the device and stores its path.
func (s *Service) SetDeviceImage(ctx context.Context, userID, deviceID uuid.UUID, img *media.Upload) (*DeviceInfo, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured: %w", common.ErrInvalidImage)
	}
	device, err := Load(s.db.WithContext(ctx), userID, deviceID, false)
	if err != nil {
		return nil, err
	}
	path, err := s.images.UploadImage(ctx, media.BucketDeviceImages, userID, deviceID, img)
	if err != nil {
		return nil, err
	}
	if device.ImagePath != nil && *device.ImagePath != path {
		if err := s.images.DeleteImage(ctx, media.BucketDeviceImages, *device.ImagePath); err != nil {
			log.WithError(err).Warnf("⚠️ previous image of device %s left behind", deviceID)
		}
	}
	if err := s.db.WithContext(ctx).Model(device).Update("image_path", path).Error; err != nil {
		return nil, fmt.Errorf("failed to save image path: %w", err)
	}
	return s.GetDevice(ctx, userID, deviceID)
}

// Load fetches a device owned by userID, optionally locking the row for
// the rest of the transaction.
func Load(db *gorm.DB, userID, deviceID uuid.UUID, lock bool) (*inventory.Device, error) {
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var device inventory.Device
	if err := q.Where("id = ? AND user_id = ?", deviceID, userID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %s: %w", deviceID, common.ErrNotFoundOrForbidden)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// Helper methods

func (s *Service) installedBy(ctx context.Context, userID uuid.UUID) (map[uuid.UUID][]inventory.Battery, error) {
	var batteries []inventory.Battery
	if err := s.db.WithContext(ctx).Preload("Group").
		Where("user_id = ? AND device_id IS NOT NULL", userID).
		Order("slot_number ASC").
		Find(&batteries).Error; err != nil {
		return nil, fmt.Errorf("failed to get installed batteries: %w", err)
	}
	out := make(map[uuid.UUID][]inventory.Battery)
	for _, b := range batteries {
		out[*b.DeviceID] = append(out[*b.DeviceID], b)
	}
	return out, nil
}

func (s *Service) toDeviceInfo(ctx context.Context, d *inventory.Device, batteries []inventory.Battery) DeviceInfo {
	info := DeviceInfo{
		Device:    *d,
		EndOfLife: BatteryEndOfLife(d),
		Batteries: make([]InstalledBattery, 0, len(batteries)),
	}
	for _, b := range batteries {
		info.Batteries = append(info.Batteries, toInstalled(b))
	}
	if s.images != nil {
		info.ImageURL = s.images.ImageURL(ctx, media.BucketDeviceImages, d.ImagePath)
	}
	return info
}

func validCount(n int) error {
	if n < 1 || n > MaxBatteryCount {
		return fmt.Errorf("battery_count must be between 1 and %d: %w", MaxBatteryCount, common.ErrValidation)
	}
	return nil
}

func parseDate(v string) (*datatypes.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("purchase_date must be YYYY-MM-DD: %w", common.ErrValidation)
	}
	d := datatypes.Date(t)
	return &d, nil
}
