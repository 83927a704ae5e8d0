// Package reputation provides the reference data sets and the known-bad /
// known-good lookup used during indicator analysis. Reference data is loaded
// once into an immutable Set; refreshes build a new Set and swap it in.
package reputation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ThreatType labels what a reference record claims about an indicator.
type ThreatType string

const (
	ThreatMalware  ThreatType = "malware"
	ThreatPhishing ThreatType = "phishing"
	ThreatScam     ThreatType = "scam"
	ThreatSpam     ThreatType = "spam"
)

// Brand is a protected brand name and its official domains.
type Brand struct {
	Name    string
	Domains []string
}

// BrandFamily groups brands of the same kind. Families are checked in
// order, so banks take precedence over telcos in context-mismatch checks.
type BrandFamily struct {
	Name   string
	Brands []Brand
}

// Set holds every reference structure consumed by the analysis pipeline.
// A Set is immutable after construction; callers must never mutate it.
type Set struct {
	maliciousDomains map[string]ThreatType
	safeDomains      map[string]bool
	shorteners       map[string]bool
	tldWeights       map[string]float64
	phishingKeywords []string

	brandFamilies []BrandFamily

	disposableEmailDomains  map[string]bool
	freemailDomains         map[string]bool
	blacklistedEmailDomains map[string]bool

	premiumPrefixes map[string][]string
	scamNumbers     map[string]bool
}

// SetFile is the on-disk YAML representation of a reference Set.
// Every section is optional; missing sections keep the built-in defaults.
type SetFile struct {
	MaliciousDomains map[string]string   `yaml:"malicious_domains"` // domain -> threat type
	SafeDomains      []string            `yaml:"safe_domains"`
	Shorteners       []string            `yaml:"shorteners"`
	SuspiciousTLDs   map[string]float64  `yaml:"suspicious_tlds"` // tld -> score delta
	PhishingKeywords []string            `yaml:"phishing_keywords"`
	Banks            map[string][]string `yaml:"banks"` // brand -> official domains
	Telcos           map[string][]string `yaml:"telcos"`
	DisposableEmail  []string            `yaml:"disposable_email_domains"`
	FreemailDomains  []string            `yaml:"freemail_domains"`
	BlacklistedEmail []string            `yaml:"blacklisted_email_domains"`
	PremiumPrefixes  map[string][]string `yaml:"premium_prefixes"` // country code -> prefixes
	ScamNumbers      []string            `yaml:"scam_numbers"`
}

// DefaultSet returns the built-in reference data.
func DefaultSet() *Set {
	return buildSet(SetFile{})
}

// LoadFile reads a YAML reference file and merges it over the defaults.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}

	var file SetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse reference file: %w", err)
	}

	return buildSet(file), nil
}

func buildSet(file SetFile) *Set {
	s := &Set{
		maliciousDomains: defaultMaliciousDomains(),
		safeDomains:      defaultSafeDomains(),
		shorteners:       defaultShorteners(),
		tldWeights:       defaultTLDWeights(),
		phishingKeywords: defaultPhishingKeywords(),

		disposableEmailDomains:  defaultDisposableEmailDomains(),
		freemailDomains:         defaultFreemailDomains(),
		blacklistedEmailDomains: defaultBlacklistedEmailDomains(),

		premiumPrefixes: defaultPremiumPrefixes(),
		scamNumbers:     defaultScamNumbers(),
	}

	banks := defaultBanks()
	telcos := defaultTelcos()

	for domain, threat := range file.MaliciousDomains {
		s.maliciousDomains[strings.ToLower(domain)] = ThreatType(threat)
	}
	mergeList(s.safeDomains, file.SafeDomains)
	mergeList(s.shorteners, file.Shorteners)
	for tld, weight := range file.SuspiciousTLDs {
		s.tldWeights[strings.ToLower(strings.TrimPrefix(tld, "."))] = weight
	}
	if len(file.PhishingKeywords) > 0 {
		s.phishingKeywords = append(s.phishingKeywords, file.PhishingKeywords...)
	}
	for brand, domains := range file.Banks {
		banks[strings.ToLower(brand)] = domains
	}
	for brand, domains := range file.Telcos {
		telcos[strings.ToLower(brand)] = domains
	}
	mergeList(s.disposableEmailDomains, file.DisposableEmail)
	mergeList(s.freemailDomains, file.FreemailDomains)
	mergeList(s.blacklistedEmailDomains, file.BlacklistedEmail)
	for cc, prefixes := range file.PremiumPrefixes {
		s.premiumPrefixes[strings.ToUpper(cc)] = prefixes
	}
	mergeList(s.scamNumbers, file.ScamNumbers)

	s.brandFamilies = []BrandFamily{
		{Name: "bank", Brands: sortedBrands(banks)},
		{Name: "telco", Brands: sortedBrands(telcos)},
	}

	return s
}

func mergeList(dst map[string]bool, src []string) {
	for _, v := range src {
		dst[strings.ToLower(v)] = true
	}
}

// sortedBrands flattens a brand map into a deterministic ordered slice so
// repeated analyses of the same indicator produce identical output.
func sortedBrands(m map[string][]string) []Brand {
	brands := make([]Brand, 0, len(m))
	for name, domains := range m {
		brands = append(brands, Brand{Name: name, Domains: domains})
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].Name < brands[j].Name })
	return brands
}

// MaliciousDomain reports whether the domain, or any parent domain formed by
// stripping leading labels, is in the known-malicious set. A blocked root
// domain therefore covers all of its subdomains.
func (s *Set) MaliciousDomain(domain string) (ThreatType, bool) {
	domain = strings.ToLower(domain)
	if t, ok := s.maliciousDomains[domain]; ok {
		return t, true
	}

	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts); i++ {
		if t, ok := s.maliciousDomains[strings.Join(parts[i:], ".")]; ok {
			return t, true
		}
	}

	return "", false
}

// SafeDomain reports whether the domain or a parent domain is allow-listed.
func (s *Set) SafeDomain(domain string) bool {
	domain = strings.ToLower(domain)
	if s.safeDomains[domain] {
		return true
	}
	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts); i++ {
		if s.safeDomains[strings.Join(parts[i:], ".")] {
			return true
		}
	}
	return false
}

// Shortener reports whether the domain is a known URL shortener.
func (s *Set) Shortener(domain string) bool {
	return s.shorteners[strings.ToLower(domain)]
}

// TLDWeight returns the risk delta for a suspicious TLD, or 0 for benign TLDs.
func (s *Set) TLDWeight(tld string) float64 {
	return s.tldWeights[strings.ToLower(tld)]
}

// PhishingKeywords returns the ordered keyword list used by the URL rules.
func (s *Set) PhishingKeywords() []string {
	return s.phishingKeywords
}

// BrandFamilies returns the ordered brand families (banks first).
func (s *Set) BrandFamilies() []BrandFamily {
	return s.brandFamilies
}

// DisposableEmailDomain reports whether the domain is a throwaway provider.
func (s *Set) DisposableEmailDomain(domain string) bool {
	return s.disposableEmailDomains[strings.ToLower(domain)]
}

// FreemailDomain reports whether the domain is a free consumer provider.
func (s *Set) FreemailDomain(domain string) bool {
	return s.freemailDomains[strings.ToLower(domain)]
}

// BlacklistedEmailDomain reports whether the email domain is block-listed.
func (s *Set) BlacklistedEmailDomain(domain string) bool {
	return s.blacklistedEmailDomains[strings.ToLower(domain)]
}

// PremiumPrefixes returns the premium-rate prefixes for a country code,
// falling back to the generic list when the country is not configured.
func (s *Set) PremiumPrefixes(countryCode string) []string {
	if prefixes, ok := s.premiumPrefixes[strings.ToUpper(countryCode)]; ok {
		return prefixes
	}
	return s.premiumPrefixes["default"]
}

// ScamNumber reports whether the full number is a known scam caller.
func (s *Set) ScamNumber(number string) bool {
	return s.scamNumbers[number]
}

// Built-in defaults. These mirror the curated seed lists shipped with the
// service; production deployments override them via the reference file.

func defaultMaliciousDomains() map[string]ThreatType {
	return map[string]ThreatType{
		"malware-distribution.com": ThreatMalware,
		"drive-by-download.net":    ThreatMalware,
		"ransomware-download.com":  ThreatMalware,
		"cryptominer-inject.com":   ThreatMalware,
		"fake-antivirus.com":       ThreatMalware,
		"phishing-site.net":        ThreatPhishing,
		"fake-login.com":           ThreatPhishing,
		"credential-stealer.net":   ThreatPhishing,
		"scam-prize.org":           ThreatScam,
		"evil-domain.org":          ThreatMalware,
	}
}

func defaultSafeDomains() map[string]bool {
	return map[string]bool{
		"google.com":    true,
		"microsoft.com": true,
		"apple.com":     true,
		"amazon.com":    true,
		"github.com":    true,
		"wikipedia.org": true,
	}
}

func defaultShorteners() map[string]bool {
	return map[string]bool{
		"bit.ly":      true,
		"tinyurl.com": true,
		"t.co":        true,
		"goo.gl":      true,
		"ow.ly":       true,
		"is.gd":       true,
		"buff.ly":     true,
		"adf.ly":      true,
		"bl.ink":      true,
		"lnkd.in":     true,
		"rebrand.ly":  true,
		"short.io":    true,
	}
}

func defaultTLDWeights() map[string]float64 {
	return map[string]float64{
		"tk":       0.20,
		"ml":       0.20,
		"ga":       0.20,
		"cf":       0.20,
		"gq":       0.20,
		"xyz":      0.15,
		"top":      0.15,
		"click":    0.15,
		"rest":     0.15,
		"cam":      0.15,
		"icu":      0.15,
		"monster":  0.15,
		"download": 0.15,
		"buzz":     0.10,
		"link":     0.10,
		"work":     0.10,
		"uno":      0.10,
	}
}

func defaultPhishingKeywords() []string {
	return []string{
		"login", "signin", "account", "verify", "secure", "update",
		"confirm", "password", "credential", "bank", "paypal", "apple",
		"microsoft", "google", "facebook", "amazon", "netflix", "support",
		"helpdesk", "suspended", "locked", "unusual", "activity",
	}
}

func defaultBanks() map[string][]string {
	return map[string][]string{
		"bbva":      {"bbva.es", "bbva.com"},
		"santander": {"santander.es", "santander.com", "bancosantander.es"},
		"caixabank": {"caixabank.es", "caixabank.com", "lacaixa.es"},
		"sabadell":  {"bancsabadell.com", "sabadell.com"},
		"ing":       {"ing.es", "ingdirect.es"},
		"openbank":  {"openbank.es", "openbank.com"},
		"bankinter": {"bankinter.com", "bankinter.es"},
		"evo":       {"evobanco.com"},
		"unicaja":   {"unicaja.es", "unicajabanco.es"},
		"kutxabank": {"kutxabank.es", "kutxabank.com"},
		"abanca":    {"abanca.com", "abanca.es"},
		"ibercaja":  {"ibercaja.es"},
	}
}

func defaultTelcos() map[string][]string {
	return map[string][]string{
		"movistar":  {"movistar.es", "movistar.com", "telefonica.es"},
		"vodafone":  {"vodafone.es", "vodafone.com"},
		"orange":    {"orange.es", "orange.com"},
		"yoigo":     {"yoigo.com", "yoigo.es"},
		"masmovil":  {"masmovil.es", "masmovil.com"},
		"pepephone": {"pepephone.com"},
		"lowi":      {"lowi.es"},
		"digi":      {"digimobil.es"},
		"simyo":     {"simyo.es"},
		"finetwork": {"finetwork.com"},
	}
}

func defaultDisposableEmailDomains() map[string]bool {
	return map[string]bool{
		"tempmail.com":       true,
		"throwaway.email":    true,
		"guerrillamail.com":  true,
		"10minutemail.com":   true,
		"mailinator.com":     true,
		"yopmail.com":        true,
		"trashmail.com":      true,
		"fakeinbox.com":      true,
		"tempail.com":        true,
		"getnada.com":        true,
		"temp-mail.org":      true,
		"disposablemail.com": true,
		"maildrop.cc":        true,
		"dispostable.com":    true,
		"sharklasers.com":    true,
	}
}

func defaultFreemailDomains() map[string]bool {
	return map[string]bool{
		"gmail.com":      true,
		"yahoo.com":      true,
		"hotmail.com":    true,
		"outlook.com":    true,
		"aol.com":        true,
		"icloud.com":     true,
		"protonmail.com": true,
		"mail.com":       true,
		"zoho.com":       true,
		"yandex.com":     true,
	}
}

func defaultBlacklistedEmailDomains() map[string]bool {
	return map[string]bool{
		"malicious-domain.com":   true,
		"phishing-site.net":      true,
		"scam-emails.org":        true,
		"fraud-domain.com":       true,
		"spam-sender.net":        true,
		"fake-bank-alert.com":    true,
		"lottery-winner.net":     true,
		"prince-nigeria.com":     true,
		"free-iphone-winner.com": true,
	}
}

func defaultPremiumPrefixes() map[string][]string {
	return map[string][]string{
		"ES":      {"803", "806", "807", "905", "907"},
		"MX":      {"900"},
		"US":      {"900", "976"},
		"GB":      {"09", "070"},
		"default": {"900", "901", "902"},
	}
}

func defaultScamNumbers() map[string]bool {
	return map[string]bool{
		"+34900000000": true,
		"+1234567890":  true,
		"+15551234567": true,
	}
}
