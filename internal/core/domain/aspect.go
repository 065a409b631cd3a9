package domain

import "strings"

// Aspect is a product area a review talks about.
type Aspect string

// Known aspects.
const (
	AspectPricing      Aspect = "pricing"
	AspectOnboarding   Aspect = "onboarding"
	AspectSupport      Aspect = "support"
	AspectPerformance  Aspect = "performance"
	AspectIntegrations Aspect = "integrations"
	AspectReporting    Aspect = "reporting"
	AspectUsability    Aspect = "usability"
	AspectReliability  Aspect = "reliability"
	AspectFeatureGap   Aspect = "feature_gap"
)

// AllAspects returns every known aspect in declaration order.
func AllAspects() []Aspect {
	return []Aspect{
		AspectPricing, AspectOnboarding, AspectSupport, AspectPerformance,
		AspectIntegrations, AspectReporting, AspectUsability, AspectReliability,
		AspectFeatureGap,
	}
}

// Title returns the display title used when naming a theme after the aspect.
func (a Aspect) Title() string {
	switch a {
	case AspectPricing:
		return "Pricing clarity"
	case AspectOnboarding:
		return "Team onboarding"
	case AspectSupport:
		return "Customer support"
	case AspectPerformance:
		return "Performance issues"
	case AspectIntegrations:
		return "Integrations"
	case AspectReporting:
		return "Reporting & analytics"
	case AspectUsability:
		return "Usability"
	case AspectReliability:
		return "Reliability"
	case AspectFeatureGap:
		return "Feature gaps"
	default:
		return strings.ReplaceAll(string(a), "_", " ")
	}
}

// AspectTag is one aspect mention found in a review.
type AspectTag struct {
	ReviewID string   `json:"review_id"`
	Aspect   Aspect   `json:"aspect"`
	Severity Severity `json:"severity"`
	Quote    string   `json:"quote"`
}
