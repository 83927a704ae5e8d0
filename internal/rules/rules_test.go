package rules

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/lvonguyen/scamshield/internal/indicator"
	"github.com/lvonguyen/scamshield/internal/reputation"
)

func testEval(t *testing.T) (*Evaluator, *reputation.Set, *indicator.Normalizer) {
	t.Helper()
	refs, err := reputation.NewService(reputation.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewEvaluator(zap.NewNop()), refs.Current(), indicator.NewNormalizer(refs)
}

func mustURL(t *testing.T, n *indicator.Normalizer, raw string) *indicator.URL {
	t.Helper()
	u, err := n.URL(raw)
	if err != nil {
		t.Fatalf("URL(%q): %v", raw, err)
	}
	return u
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ============================================================
// URL battery
// ============================================================

func TestURLBatteryCleanDomain(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "https://example.org/articles"), "")
	if res.Score != 0 || len(res.Findings) != 0 {
		t.Errorf("clean URL scored %v with findings %v", res.Score, res.Findings)
	}
}

func TestURLBatteryStackedSignals(t *testing.T) {
	e, set, n := testEval(t)

	// tk TLD (0.20) + "login" keyword (0.15) + redirect param (0.15).
	u := mustURL(t, n, "http://secure-login-update.tk/verify?redirect=http://evil.example")
	res := e.URL(set, u, "")

	if !approx(res.Score, 0.50) {
		t.Errorf("score = %v, want 0.50", res.Score)
	}
	if len(res.Findings) != 3 {
		t.Fatalf("findings = %d, want 3: %+v", len(res.Findings), res.Findings)
	}
	if res.Findings[0].Rule != "suspicious_tld" {
		t.Errorf("first finding = %q", res.Findings[0].Rule)
	}
}

func TestURLBatteryKeywordFiresOnce(t *testing.T) {
	e, set, n := testEval(t)

	// Multiple keywords present, only the first match scores.
	u := mustURL(t, n, "https://example.com/login-verify-account-password")
	res := e.URL(set, u, "")

	if !approx(res.Score, 0.15) {
		t.Errorf("score = %v, want 0.15 (single keyword delta)", res.Score)
	}
}

func TestURLBatteryIPLiteral(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "http://203.0.113.7/index"), "")
	if !approx(res.Score, 0.40) {
		t.Errorf("score = %v, want 0.40", res.Score)
	}
}

func TestURLBatteryHomograph(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "https://gοοgle.com/"), "")
	found := false
	for _, f := range res.Findings {
		if f.Rule == "non_ascii_domain" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected non_ascii_domain finding, got %+v", res.Findings)
	}
}

func TestURLBatteryAtSignAndEscapes(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "https://example.com/@evil.example/%41%42%43%44%45%46"), "")
	if !res.hasRule("embedded_credentials") || !res.hasRule("percent_escapes") {
		t.Errorf("missing findings: %+v", res.Findings)
	}
}

func TestURLBatteryClampsAtOne(t *testing.T) {
	e, set, n := testEval(t)

	u := mustURL(t, n, "http://bbva-secure-login-update.verify.account.bank.tk/login?redirect=http://x")
	res := e.URL(set, u, "mensaje de bbva")

	if res.Score != 1.0 {
		t.Errorf("score = %v, want clamp at 1.0", res.Score)
	}
}

func (r Result) hasRule(name string) bool {
	for _, f := range r.Findings {
		if f.Rule == name {
			return true
		}
	}
	return false
}

// ============================================================
// Brand impersonation and context mismatch
// ============================================================

func TestURLBrandImpersonationContains(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "https://bbva-secure.xyz/"), "")
	if !res.HasTag(TagTyposquatting) {
		t.Errorf("expected typosquatting tag: %+v", res.Findings)
	}
}

func TestURLBrandOfficialDomainNotFlagged(t *testing.T) {
	e, set, n := testEval(t)

	for _, raw := range []string{"https://bbva.es/", "https://clientes.bbva.es/login"} {
		res := e.URL(set, mustURL(t, n, raw), "")
		if res.HasTag(TagTyposquatting) {
			t.Errorf("official domain %q flagged: %+v", raw, res.Findings)
		}
	}
}

func TestURLBrandTyposquatting(t *testing.T) {
	e, set, n := testEval(t)

	// One substitution away from "santander".
	res := e.URL(set, mustURL(t, n, "https://santender.com/"), "")
	if !res.HasTag(TagTyposquatting) {
		t.Errorf("expected typosquatting tag for edit-distance match: %+v", res.Findings)
	}
}

func TestURLContextMismatchBankVsTelco(t *testing.T) {
	e, set, n := testEval(t)

	bank := e.URL(set, mustURL(t, n, "https://example-site.com/"), "aviso de santander")
	telco := e.URL(set, mustURL(t, n, "https://example-site.com/"), "mensaje de vodafone")

	var bankDelta, telcoDelta float64
	for _, f := range bank.Findings {
		if f.Tag == TagContextMismatch {
			bankDelta = f.Delta
		}
	}
	for _, f := range telco.Findings {
		if f.Tag == TagContextMismatch {
			telcoDelta = f.Delta
		}
	}

	if !approx(bankDelta, 0.40) {
		t.Errorf("bank mismatch delta = %v, want 0.40", bankDelta)
	}
	if !approx(telcoDelta, 0.35) {
		t.Errorf("telco mismatch delta = %v, want 0.35", telcoDelta)
	}
}

func TestURLContextMismatchSuppressedForOfficialDomain(t *testing.T) {
	e, set, n := testEval(t)

	res := e.URL(set, mustURL(t, n, "https://bbva.es/aviso"), "mensaje de bbva")
	if res.HasTag(TagContextMismatch) {
		t.Errorf("official domain must not mismatch its own brand: %+v", res.Findings)
	}
}

// ============================================================
// Email battery
// ============================================================

func TestEmailBatteryDisposable(t *testing.T) {
	e, set, n := testEval(t)

	m, err := n.Email("winner12345@mailinator.com")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Email(set, m, "")

	if !res.hasRule("disposable_domain") {
		t.Errorf("expected disposable finding: %+v", res.Findings)
	}
	if !res.hasRule("local_part_keyword") {
		t.Errorf("expected keyword finding: %+v", res.Findings)
	}
}

func TestEmailBatteryDigitHeavyLocal(t *testing.T) {
	e, set, n := testEval(t)

	m, err := n.Email("a1234567@example.com")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Email(set, m, "")
	if !res.hasRule("digit_heavy_local_part") {
		t.Errorf("expected digit-heavy finding: %+v", res.Findings)
	}
}

func TestEmailBatterySenderMismatch(t *testing.T) {
	e, set, n := testEval(t)

	m, err := n.Email("atencion@gmail.com")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Email(set, m, "su cuenta de caixabank ha sido bloqueada")

	var delta float64
	for _, f := range res.Findings {
		if f.Tag == TagContextMismatch {
			delta = f.Delta
		}
	}
	if !approx(delta, 0.45) {
		t.Errorf("mismatch delta = %v, want 0.45", delta)
	}
}

// ============================================================
// Phone battery
// ============================================================

func TestPhoneBatteryPremium(t *testing.T) {
	e, set, n := testEval(t)

	p, err := n.Phone("+34 806 123 456")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Phone(set, p, "")
	if !res.HasTag(TagPremiumNumber) {
		t.Errorf("expected premium tag: %+v", res.Findings)
	}
	if !approx(res.Score, 0.50) {
		t.Errorf("score = %v, want 0.50", res.Score)
	}
}

func TestPhoneBatteryBankFromMobile(t *testing.T) {
	e, set, n := testEval(t)

	p, err := n.Phone("+34 612 345 678")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Phone(set, p, "llamada de bbva sobre su cuenta")
	if !res.HasTag(TagBankMobile) {
		t.Errorf("expected bank mobile tag: %+v", res.Findings)
	}
}

func TestPhoneBatteryForeignBrand(t *testing.T) {
	e, set, n := testEval(t)

	p, err := n.Phone("+44 7700 900123")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Phone(set, p, "movistar le informa")
	if !res.HasTag(TagContextMismatch) {
		t.Errorf("expected context mismatch for foreign number: %+v", res.Findings)
	}
}

func TestPhoneBatteryUnknownCountryAndScamContext(t *testing.T) {
	e, set, n := testEval(t)

	p, err := n.Phone("612345678")
	if err != nil {
		t.Fatal(err)
	}
	res := e.Phone(set, p, "ha ganado un premio")
	if !res.hasRule("unknown_country") || !res.hasRule("scam_context_keyword") {
		t.Errorf("missing findings: %+v", res.Findings)
	}
	if !approx(res.Score, 0.35) {
		t.Errorf("score = %v, want 0.35", res.Score)
	}
}

// ============================================================
// Levenshtein
// ============================================================

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"santender", "santander", 1},
		{"bvba", "bbva", 2},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := levenshtein(tt.b, tt.a); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

// ============================================================
// Monotonicity
// ============================================================

// Each URL in the chain adds one triggering condition on top of the
// previous one; the cumulative score must never decrease.
func TestURLScoreMonotonicity(t *testing.T) {
	e, set, n := testEval(t)

	chain := []string{
		"https://mystore.com/promo",
		"https://mystore.com/promo-login",
		"https://mystore.com/promo-login?url=http://elsewhere.test",
		"https://mystore.tk/promo-login?url=http://elsewhere.test",
		"https://user@mystore.tk/promo-login?url=http://elsewhere.test",
	}

	prev := -1.0
	for _, raw := range chain {
		res := e.URL(set, mustURL(t, n, raw), "")
		if res.Score < prev {
			t.Errorf("score for %q = %v, below previous %v", raw, res.Score, prev)
		}
		prev = res.Score
	}
}
