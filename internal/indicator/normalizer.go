package indicator

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/lvonguyen/scamshield/internal/reputation"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// redirectParams are query parameter names commonly used to bounce a
// victim through a trusted domain to the real destination.
var redirectParams = []string{"redirect", "url", "link", "goto", "return", "next", "target"}

// countryPrefixes maps dialing prefixes to ISO country codes. Matched
// longest-first so +1 does not shadow +12x style prefixes elsewhere.
var countryPrefixes = map[string]string{
	"34":  "ES",
	"52":  "MX",
	"1":   "US",
	"44":  "GB",
	"33":  "FR",
	"49":  "DE",
	"39":  "IT",
	"351": "PT",
	"55":  "BR",
	"54":  "AR",
	"57":  "CO",
}

var countryNames = map[string]string{
	"ES": "Spain",
	"MX": "Mexico",
	"US": "United States",
	"GB": "United Kingdom",
	"FR": "France",
	"DE": "Germany",
	"IT": "Italy",
	"PT": "Portugal",
	"BR": "Brazil",
	"AR": "Argentina",
	"CO": "Colombia",
}

// nationalPatterns validates the national number per country.
var nationalPatterns = map[string]*regexp.Regexp{
	"ES": regexp.MustCompile(`^[6789]\d{8}$`),
	"MX": regexp.MustCompile(`^\d{10}$`),
	"US": regexp.MustCompile(`^[2-9]\d{9}$`),
}

// Normalizer turns raw strings into typed indicators, consulting the
// active reference data for shortener and email-domain classification.
type Normalizer struct {
	refs *reputation.Service
}

// NewNormalizer creates a Normalizer backed by the reputation service.
func NewNormalizer(refs *reputation.Service) *Normalizer {
	return &Normalizer{refs: refs}
}

// Sniff guesses the indicator kind of a free-text value.
func Sniff(value string) Kind {
	v := strings.TrimSpace(value)
	switch {
	case strings.Contains(v, "@") && !strings.Contains(v, "/"):
		return KindEmail
	case phonePattern.MatchString(cleanNumber(v)):
		return KindPhone
	default:
		return KindURL
	}
}

// URL normalizes a raw URL. Values without a scheme get http:// so that
// bare domains parse; the missing-HTTPS signal is preserved for scoring.
func (n *Normalizer) URL(raw string) (*URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty url", ErrMalformedInput)
	}

	withScheme := trimmed
	if !strings.Contains(trimmed, "://") {
		withScheme = "http://" + trimmed
	}

	parsed, err := url.Parse(withScheme)
	if err != nil || parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: unparseable url %q", ErrMalformedInput, raw)
	}

	host := strings.ToLower(parsed.Hostname())
	domain := strings.TrimPrefix(host, "www.")

	tld := ""
	if idx := strings.LastIndex(domain, "."); idx >= 0 {
		tld = domain[idx+1:]
	}

	ind := &URL{
		Raw:           raw,
		Normalized:    withScheme,
		Scheme:        strings.ToLower(parsed.Scheme),
		Domain:        domain,
		TLD:           tld,
		Path:          parsed.Path,
		Query:         parsed.RawQuery,
		IPLiteralHost: net.ParseIP(host) != nil,
	}

	query := parsed.Query()
	for _, param := range redirectParams {
		if query.Get(param) != "" {
			ind.HasRedirectParam = true
			break
		}
	}

	ind.IsShortener = n.refs.Current().Shortener(domain)

	return ind, nil
}

// Email normalizes and validates an email address.
func (n *Normalizer) Email(raw string) (*Email, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(addr) {
		return nil, fmt.Errorf("%w: invalid email %q", ErrMalformedInput, raw)
	}

	at := strings.LastIndex(addr, "@")
	local, domain := addr[:at], addr[at+1:]

	tld := ""
	if idx := strings.LastIndex(domain, "."); idx >= 0 {
		tld = domain[idx+1:]
	}

	set := n.refs.Current()
	return &Email{
		Raw:         raw,
		Address:     addr,
		LocalPart:   local,
		Domain:      domain,
		TLD:         tld,
		Disposable:  set.DisposableEmailDomain(domain),
		Freemail:    set.FreemailDomain(domain),
		Blacklisted: set.BlacklistedEmailDomain(domain),
	}, nil
}

// Phone normalizes a phone number: strips formatting, resolves the
// country from the dialing prefix, and detects the number type.
func (n *Normalizer) Phone(raw string) (*Phone, error) {
	cleaned := cleanNumber(raw)
	if !phonePattern.MatchString(cleaned) {
		return nil, fmt.Errorf("%w: invalid phone number %q", ErrMalformedInput, raw)
	}

	ind := &Phone{
		Raw:        raw,
		Normalized: cleaned,
		Country:    "UNKNOWN",
		National:   cleaned,
		Type:       NumberUnknown,
	}

	if strings.HasPrefix(cleaned, "+") {
		digits := cleaned[1:]
		for l := 3; l >= 1; l-- {
			if l > len(digits) {
				continue
			}
			if cc, ok := countryPrefixes[digits[:l]]; ok {
				ind.CountryCode = digits[:l]
				ind.Country = cc
				ind.National = digits[l:]
				break
			}
		}
		if ind.Country == "UNKNOWN" {
			ind.National = digits
		}
	}

	if pattern, ok := nationalPatterns[ind.Country]; ok && !pattern.MatchString(ind.National) {
		return nil, fmt.Errorf("%w: number %q not valid for %s", ErrMalformedInput, raw, ind.Country)
	}

	for _, prefix := range n.refs.Current().PremiumPrefixes(ind.Country) {
		if strings.HasPrefix(ind.National, prefix) {
			ind.Premium = true
			break
		}
	}

	ind.Type = numberType(ind.Country, ind.National, ind.Premium)
	ind.Repetitive = repetitivePattern(ind.National)

	return ind, nil
}

// CountryName resolves an ISO country code to a display name.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return "Unknown"
}

func cleanNumber(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// formatting characters, dropped
		default:
			return ""
		}
	}
	s := b.String()
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	return s
}

func numberType(country, national string, premium bool) NumberType {
	if premium {
		return NumberPremium
	}

	switch country {
	case "ES":
		switch {
		case strings.HasPrefix(national, "6"), strings.HasPrefix(national, "7"):
			return NumberMobile
		case strings.HasPrefix(national, "900"):
			return NumberTollFree
		case strings.HasPrefix(national, "8"), strings.HasPrefix(national, "9"):
			return NumberLandline
		}
	case "US":
		for _, p := range []string{"800", "888", "877", "866", "855", "844", "833"} {
			if strings.HasPrefix(national, p) {
				return NumberTollFree
			}
		}
		return NumberLandline
	case "MX":
		if strings.HasPrefix(national, "1") {
			return NumberMobile
		}
		return NumberLandline
	}

	return NumberUnknown
}

// repetitivePattern flags numbers that look auto-generated: one digit
// repeated five or more times in a row, or at most two distinct digits
// across the whole national number.
func repetitivePattern(national string) bool {
	if national == "" {
		return false
	}

	run := 1
	for i := 1; i < len(national); i++ {
		if national[i] == national[i-1] {
			run++
			if run >= 5 {
				return true
			}
		} else {
			run = 1
		}
	}

	distinct := map[byte]bool{}
	for i := 0; i < len(national); i++ {
		distinct[national[i]] = true
	}
	return len(national) >= 7 && len(distinct) <= 2
}
