package models

// PlanKey identifies a subscription tier
type PlanKey string

const (
	PlanFree  PlanKey = "free"
	PlanBasic PlanKey = "basic"
	PlanPro   PlanKey = "pro"
)

// WatermarkLevel controls how exports are watermarked
type WatermarkLevel string

const (
	WatermarkFull  WatermarkLevel = "full"
	WatermarkSmall WatermarkLevel = "small"
	WatermarkNone  WatermarkLevel = "none"
)

// Unlimited marks a download cap with no bound
const Unlimited = -1

// PlanDescriptor is the derived feature set for a subscription tier.
// It is a pure function of the tier and is never persisted.
type PlanDescriptor struct {
	Key          PlanKey        `json:"key"`
	DailyLimit   int            `json:"daily_limit"`
	MonthlyLimit int            `json:"monthly_limit"`
	Watermark    WatermarkLevel `json:"watermark"`
	Backgrounds  int            `json:"backgrounds"`
	Fonts        int            `json:"fonts"`
}

// DailyUnlimited reports whether the plan has no daily download cap
func (p PlanDescriptor) DailyUnlimited() bool {
	return p.DailyLimit == Unlimited
}

// MonthlyUnlimited reports whether the plan has no monthly download cap
func (p PlanDescriptor) MonthlyUnlimited() bool {
	return p.MonthlyLimit == Unlimited
}
