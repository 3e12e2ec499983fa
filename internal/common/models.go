package common

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel - shared base for every owned table
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate assigns an ID when the caller did not. gen_random_uuid() is
// not available on SQLite, so IDs are generated here for both dialects.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// OwnedModel - BaseModel scoped to one owner
type OwnedModel struct {
	BaseModel
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
}

// Now returns the current time truncated to microseconds, the resolution
// Postgres stores timestamps with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
