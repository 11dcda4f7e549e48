package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/animequotestudio/studio/pkg/models"
)

func TestForKey(t *testing.T) {
	tests := []struct {
		name         string
		key          models.PlanKey
		daily        int
		monthly      int
		watermark    models.WatermarkLevel
		backgrounds  int
		fonts        int
	}{
		{
			name:        "free tier",
			key:         models.PlanFree,
			daily:       3,
			monthly:     10,
			watermark:   models.WatermarkFull,
			backgrounds: 2,
			fonts:       1,
		},
		{
			name:        "basic tier",
			key:         models.PlanBasic,
			daily:       20,
			monthly:     models.Unlimited,
			watermark:   models.WatermarkSmall,
			backgrounds: 4,
			fonts:       2,
		},
		{
			name:        "pro tier",
			key:         models.PlanPro,
			daily:       models.Unlimited,
			monthly:     models.Unlimited,
			watermark:   models.WatermarkNone,
			backgrounds: 8,
			fonts:       3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ForKey(tt.key)
			assert.Equal(t, tt.key, p.Key)
			assert.Equal(t, tt.daily, p.DailyLimit)
			assert.Equal(t, tt.monthly, p.MonthlyLimit)
			assert.Equal(t, tt.watermark, p.Watermark)
			assert.Equal(t, tt.backgrounds, p.Backgrounds)
			assert.Equal(t, tt.fonts, p.Fonts)
		})
	}
}

func TestForKeyUnknownFallsBackToFree(t *testing.T) {
	p := ForKey(models.PlanKey("enterprise"))
	assert.Equal(t, models.PlanFree, p.Key)
}

func TestResolveNilProfile(t *testing.T) {
	p := Resolve(nil)
	assert.Equal(t, models.PlanFree, p.Key)
	assert.Equal(t, 3, p.DailyLimit)
}

func TestResolveProfileTier(t *testing.T) {
	p := Resolve(&models.UserProfile{SubscriptionTier: models.PlanPro})
	assert.Equal(t, models.PlanPro, p.Key)
	assert.True(t, p.DailyUnlimited())
	assert.True(t, p.MonthlyUnlimited())
}

func TestResolveEmptyTierFallsBackToFree(t *testing.T) {
	p := Resolve(&models.UserProfile{})
	assert.Equal(t, models.PlanFree, p.Key)
}

func TestUnlocksMonotonic(t *testing.T) {
	free := ForKey(models.PlanFree)
	basic := ForKey(models.PlanBasic)
	pro := ForKey(models.PlanPro)

	assert.LessOrEqual(t, free.Backgrounds, basic.Backgrounds)
	assert.LessOrEqual(t, basic.Backgrounds, pro.Backgrounds)
	assert.LessOrEqual(t, free.Fonts, basic.Fonts)
	assert.LessOrEqual(t, basic.Fonts, pro.Fonts)
}
