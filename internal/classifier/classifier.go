// Package classifier turns lookup verdicts and heuristic scores into
// final threat assessments.
package classifier

import (
	"time"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/reputation"
	"github.com/lvonguyen/scamshield/internal/rules"
)

// Level is the threat severity band.
type Level string

const (
	LevelSafe     Level = "safe"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelSafe:     0,
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

// atLeast raises a level to a floor, never lowers it.
func atLeast(l, floor Level) Level {
	if levelRank[l] < levelRank[floor] {
		return floor
	}
	return l
}

// Analysis is the assessment returned for one indicator.
type Analysis struct {
	Kind       indicator.Kind `json:"kind"`
	Value      string         `json:"value"`
	Normalized string         `json:"normalized,omitempty"`
	Domain     string         `json:"domain,omitempty"`

	IsMalicious     bool     `json:"is_malicious"`
	ThreatLevel     Level    `json:"threat_level"`
	ThreatTypes     []string `json:"threat_types"`
	Score           float64  `json:"score"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations,omitempty"`

	Email *indicator.Email `json:"email,omitempty"`
	Phone *indicator.Phone `json:"phone,omitempty"`

	AnalyzedAt time.Time `json:"analyzed_at"`

	// LookupDegraded is surfaced in logs and metrics, not in responses.
	LookupDegraded bool `json:"-"`
}

// classify maps a heuristic score to a level and malicious flag.
func classify(score float64) (Level, bool) {
	switch {
	case score > 0.7:
		return LevelHigh, true
	case score > 0.4:
		return LevelMedium, false
	default:
		return LevelSafe, false
	}
}

// threatTypesFromTags derives the threat type from the triggered rule
// tags. The precedence chain yields exactly one type: typosquatting
// beats premium-rate beats context mismatch, so a typosquatted domain
// with a mismatched sender is phishing, not both. A scored indicator
// with no tags is plain suspicious once it passed the medium threshold.
func threatTypesFromTags(res rules.Result, level Level) []string {
	switch {
	case res.HasTag(rules.TagTyposquatting):
		return []string{"phishing"}
	case res.HasTag(rules.TagPremiumNumber):
		return []string{"scam"}
	case res.HasTag(rules.TagContextMismatch):
		return []string{"social_engineering"}
	case levelRank[level] >= levelRank[LevelMedium]:
		return []string{"suspicious"}
	}
	return []string{}
}

// confidenceFor assigns the confidence for a heuristically scored level.
func confidenceFor(level Level, noTypes bool) float64 {
	if noTypes {
		return 0.85
	}
	switch level {
	case LevelHigh:
		return 0.90
	case LevelMedium:
		return 0.75
	case LevelLow:
		return 0.70
	default:
		return 0.85
	}
}

// finishTypes substitutes the none type when nothing concrete was found.
func finishTypes(a *Analysis) {
	if len(a.ThreatTypes) == 0 {
		a.ThreatTypes = []string{"none"}
		a.Confidence = 0.85
	}
}

func threatTypeString(t reputation.ThreatType) string {
	if t == "" {
		return "malicious"
	}
	return string(t)
}
