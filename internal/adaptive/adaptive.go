// Package adaptive maps evaluation scores to difficulty directives.
package adaptive

// Directive is the recommended change in question difficulty.
type Directive string

const (
	Easier   Directive = "easier"
	Maintain Directive = "maintain"
	Harder   Directive = "harder"
)

const (
	// RemediationThreshold is the lowest score that does not ask for easier material.
	RemediationThreshold = 70
	// ChallengeThreshold is the highest score that does not ask for harder material.
	ChallengeThreshold = 90
)

// DirectiveFor returns easier below 70, harder above 90 and maintain otherwise.
func DirectiveFor(score float64) Directive {
	switch {
	case score < RemediationThreshold:
		return Easier
	case score > ChallengeThreshold:
		return Harder
	default:
		return Maintain
	}
}
