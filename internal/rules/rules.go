// Package rules implements the heuristic rule batteries that score
// indicators. Every rule is a pure function from a Context to an
// optional Finding; the evaluator sums the deltas and clamps to 1.0.
package rules

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

// Finding is one triggered rule with its score contribution.
type Finding struct {
	Rule   string  `json:"rule"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
	Tag    string  `json:"tag,omitempty"`
}

// Tags attached to findings that the classifier maps to threat types.
const (
	TagTyposquatting   = "typosquatting"
	TagContextMismatch = "context_mismatch"
	TagPremiumNumber   = "premium_number"
	TagBankMobile      = "bank_mobile_number"
)

// Result is the outcome of running a battery: the clamped score and the
// findings in rule-registration order.
type Result struct {
	Score    float64   `json:"score"`
	Findings []Finding `json:"findings"`
}

// HasTag reports whether any finding carries the given tag.
func (r Result) HasTag(tag string) bool {
	for _, f := range r.Findings {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

// Reasons returns the finding reasons in order.
func (r Result) Reasons() []string {
	reasons := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		reasons = append(reasons, f.Reason)
	}
	return reasons
}

// Context carries everything a rule may inspect. Exactly one indicator
// field is set per evaluation; Claimed is the lowercased free-text
// context the reporter supplied (claimed sender, message excerpt).
type Context struct {
	Set     *reputation.Set
	URL     *indicator.URL
	Email   *indicator.Email
	Phone   *indicator.Phone
	Claimed string
}

// Rule is a named pure check.
type Rule struct {
	Name  string
	Check func(Context) *Finding
}

// Evaluator runs rule batteries over indicators.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// URL scores a URL indicator.
func (e *Evaluator) URL(set *reputation.Set, u *indicator.URL, claimed string) Result {
	return e.run(urlRules, Context{Set: set, URL: u, Claimed: strings.ToLower(claimed)})
}

// Email scores an email indicator.
func (e *Evaluator) Email(set *reputation.Set, m *indicator.Email, claimed string) Result {
	return e.run(emailRules, Context{Set: set, Email: m, Claimed: strings.ToLower(claimed)})
}

// Phone scores a phone indicator.
func (e *Evaluator) Phone(set *reputation.Set, p *indicator.Phone, claimed string) Result {
	return e.run(phoneRules, Context{Set: set, Phone: p, Claimed: strings.ToLower(claimed)})
}

func (e *Evaluator) run(battery []Rule, ctx Context) Result {
	var res Result
	for _, rule := range battery {
		f := rule.Check(ctx)
		if f == nil {
			continue
		}
		if math.IsNaN(f.Delta) || math.IsInf(f.Delta, 0) {
			e.logger.Error("rule produced a non-finite delta, dropping finding",
				zap.String("rule", rule.Name), zap.Float64("delta", f.Delta))
			continue
		}
		f.Rule = rule.Name
		res.Findings = append(res.Findings, *f)
		res.Score += f.Delta
	}

	if res.Score > 1.0 {
		res.Score = 1.0
	}
	if res.Score < 0 {
		res.Score = 0
	}
	return res
}
