package models

// PlanType represents a billing plan tier.
type PlanType string

const (
	PlanFree       PlanType = "Free"
	PlanGrowth     PlanType = "Growth"
	PlanScale      PlanType = "Scale"
	PlanEnterprise PlanType = "Enterprise"
)

// planRank orders plans from least to most capable. Unknown plans rank
// below Free so a typo never unlocks a gated feature.
var planRank = map[PlanType]int{
	PlanFree:       1,
	PlanGrowth:     2,
	PlanScale:      3,
	PlanEnterprise: 4,
}

// IsFeatureAccessibleOnPlan reports whether a feature requiring requiredPlan
// is available to a tenant on currentPlan. An empty requiredPlan means the
// feature is not gated.
func IsFeatureAccessibleOnPlan(requiredPlan, currentPlan PlanType) bool {
	if requiredPlan == "" {
		return true
	}
	return planRank[currentPlan] >= planRank[requiredPlan]
}
