// Package indicator parses raw user-submitted values into normalized,
// typed indicators that the rule evaluator and classifier consume.
package indicator

import "errors"

// Kind identifies the indicator family.
type Kind string

const (
	KindURL   Kind = "url"
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// ErrMalformedInput marks input that could not be parsed as its claimed
// kind. The classifier turns it into a structured assessment, not a 5xx.
var ErrMalformedInput = errors.New("malformed input")

// NumberType categorizes a phone number.
type NumberType string

const (
	NumberMobile   NumberType = "mobile"
	NumberLandline NumberType = "landline"
	NumberTollFree NumberType = "toll_free"
	NumberPremium  NumberType = "premium"
	NumberUnknown  NumberType = "unknown"
)

// URL is a normalized URL indicator.
type URL struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Scheme     string `json:"scheme"`
	Domain     string `json:"domain"`
	TLD        string `json:"tld"`
	Path       string `json:"path,omitempty"`
	Query      string `json:"query,omitempty"`

	HasRedirectParam bool `json:"has_redirect_param"`
	IsShortener      bool `json:"is_shortener"`
	IPLiteralHost    bool `json:"ip_literal_host"`
}

// Email is a normalized email address indicator.
type Email struct {
	Raw       string `json:"raw"`
	Address   string `json:"address"`
	LocalPart string `json:"local_part"`
	Domain    string `json:"domain"`
	TLD       string `json:"tld"`

	Disposable  bool `json:"disposable"`
	Freemail    bool `json:"freemail"`
	Blacklisted bool `json:"blacklisted"`
}

// Phone is a normalized phone number indicator.
type Phone struct {
	Raw         string     `json:"raw"`
	Normalized  string     `json:"normalized"`
	CountryCode string     `json:"country_code,omitempty"`
	Country     string     `json:"country"`
	National    string     `json:"national_number"`
	Type        NumberType `json:"number_type"`

	Premium    bool `json:"premium"`
	Repetitive bool `json:"repetitive_pattern"`
}
