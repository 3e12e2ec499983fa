package plan

import (
	"fmt"
	"strings"
	"time"

	"battdevy/internal/common"

	"github.com/google/uuid"
)

// Tier - public plan name shown to users
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Backend tier names as stored in user_plans.tier.
const (
	backendFree    = "free"
	backendBasic   = "basic"
	backendPremium = "premium"
)

// BackendName maps a public tier to the stored tier name.
func (t Tier) BackendName() string {
	switch t {
	case TierFree:
		return backendFree
	case TierStandard:
		return backendBasic
	case TierPro:
		return backendPremium
	}
	return backendFree
}

// TierFromBackend maps a stored tier name back to the public tier. Unknown
// names fall back to free.
func TierFromBackend(name string) Tier {
	switch name {
	case backendBasic:
		return TierStandard
	case backendPremium:
		return TierPro
	}
	return TierFree
}

func ParseTier(v string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(v)))
	switch t {
	case TierFree, TierStandard, TierPro:
		return t, nil
	}
	return "", fmt.Errorf("unknown plan tier %q: %w", v, common.ErrValidation)
}

// Limits - base quota of a tier
type Limits struct {
	MaxBatteryGroups int `json:"max_battery_groups"`
	MaxDevices       int `json:"max_devices"`
}

// DefaultLimits returns the base limits assigned when a user moves to t.
func DefaultLimits(t Tier) Limits {
	switch t {
	case TierStandard:
		return Limits{MaxBatteryGroups: 10, MaxDevices: 10}
	case TierPro:
		return Limits{MaxBatteryGroups: 50, MaxDevices: 50}
	}
	return Limits{MaxBatteryGroups: 3, MaxDevices: 3}
}

// Bonus is the fixed number of extra slots each tier gets on top of its
// base limits.
func Bonus(t Tier) int {
	switch t {
	case TierStandard:
		return 2
	case TierPro:
		return 5
	}
	return 0
}

// EffectiveLimit is base + tier bonus.
func EffectiveLimit(base int, t Tier) int {
	return base + Bonus(t)
}

// IsLimitReached reports whether a user at currentCount may not create
// another row under the given base limit.
func IsLimitReached(currentCount, baseLimit int, t Tier) bool {
	return currentCount >= EffectiveLimit(baseLimit, t)
}

// UserPlan - per-user quota record
type UserPlan struct {
	UserID           uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	Tier             string    `json:"-" gorm:"size:20;not null;default:'free'"`
	MaxBatteryGroups int       `json:"max_battery_groups" gorm:"not null"`
	MaxDevices       int       `json:"max_devices" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserPlan) TableName() string {
	return "user_plans"
}

// PublicTier returns the plan's tier in its public form.
func (p *UserPlan) PublicTier() Tier {
	return TierFromBackend(p.Tier)
}

// Request/Response Models

// ChangeTierRequest represents the request to switch plans
type ChangeTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// QuotaInfo - current usage against one effective limit
type QuotaInfo struct {
	Used         int  `json:"used"`
	BaseLimit    int  `json:"base_limit"`
	Bonus        int  `json:"bonus"`
	Limit        int  `json:"limit"`
	LimitReached bool `json:"limit_reached"`
}

// UsageResponse represents the response for GET /plan
type UsageResponse struct {
	Tier          Tier      `json:"tier"`
	BatteryGroups QuotaInfo `json:"battery_groups"`
	Devices       QuotaInfo `json:"devices"`
}
