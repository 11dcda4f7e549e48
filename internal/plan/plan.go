// Package plan maps subscription tiers to their feature descriptors.
package plan

import (
	"github.com/animequotestudio/studio/pkg/models"
)

// descriptors is the fixed tier table. Catalog unlock counts are 1-based
// prefixes of the background/font catalogs.
var descriptors = map[models.PlanKey]models.PlanDescriptor{
	models.PlanFree: {
		Key:          models.PlanFree,
		DailyLimit:   3,
		MonthlyLimit: 10,
		Watermark:    models.WatermarkFull,
		Backgrounds:  2,
		Fonts:        1,
	},
	models.PlanBasic: {
		Key:          models.PlanBasic,
		DailyLimit:   20,
		MonthlyLimit: models.Unlimited,
		Watermark:    models.WatermarkSmall,
		Backgrounds:  4,
		Fonts:        2,
	},
	models.PlanPro: {
		Key:          models.PlanPro,
		DailyLimit:   models.Unlimited,
		MonthlyLimit: models.Unlimited,
		Watermark:    models.WatermarkNone,
		Backgrounds:  8,
		Fonts:        3,
	},
}

// Resolve returns the plan descriptor for a profile. It is total: a nil
// profile or an unknown tier resolves to the free plan.
func Resolve(profile *models.UserProfile) models.PlanDescriptor {
	if profile == nil {
		return descriptors[models.PlanFree]
	}
	return ForKey(profile.SubscriptionTier)
}

// ForKey returns the descriptor for a tier key, defaulting to free.
func ForKey(key models.PlanKey) models.PlanDescriptor {
	if d, ok := descriptors[key]; ok {
		return d
	}
	return descriptors[models.PlanFree]
}

// Keys returns all tier keys in upgrade order
func Keys() []models.PlanKey {
	return []models.PlanKey{models.PlanFree, models.PlanBasic, models.PlanPro}
}

// All returns all descriptors in upgrade order, for the pricing endpoint
func All() []models.PlanDescriptor {
	out := make([]models.PlanDescriptor, 0, len(descriptors))
	for _, k := range Keys() {
		out = append(out, descriptors[k])
	}
	return out
}
