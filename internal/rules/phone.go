package rules

import (
	"fmt"
	"strings"

	"github.com/lvonguyen/scamshield/internal/indicator"
)

// scamContextKeywords are lure words in the reporter-supplied message
// context, Spanish and English.
var scamContextKeywords = []string{
	"premio", "loteria", "lotería", "urgente", "hacienda", "multa",
	"paquete", "prize", "winner", "urgent", "refund", "tax", "customs",
}

var phoneRules = []Rule{
	{Name: "premium_rate", Check: checkPremiumRate},
	{Name: "bank_from_mobile", Check: checkBankMobile},
	{Name: "foreign_number_domestic_brand", Check: checkForeignBrand},
	{Name: "unknown_country", Check: checkUnknownCountry},
	{Name: "repetitive_pattern", Check: checkRepetitive},
	{Name: "scam_context_keyword", Check: checkScamContext},
}

func checkPremiumRate(ctx Context) *Finding {
	if !ctx.Phone.Premium {
		return nil
	}
	return &Finding{
		Delta:  0.50,
		Reason: "Number is a premium-rate line, calls incur high charges",
		Tag:    TagPremiumNumber,
	}
}

// checkBankMobile fires when a caller claiming to be a bank uses a plain
// mobile number. Banks call from registered landline or toll-free ranges.
func checkBankMobile(ctx Context) *Finding {
	if ctx.Phone.Type != indicator.NumberMobile {
		return nil
	}
	brand, family, ok := claimedBrand(ctx.Set, ctx.Claimed)
	if !ok || family != "bank" {
		return nil
	}
	return &Finding{
		Delta:  0.35,
		Reason: fmt.Sprintf("Caller claims to be %s but uses a personal mobile number", brand.Name),
		Tag:    TagBankMobile,
	}
}

func checkForeignBrand(ctx Context) *Finding {
	country := ctx.Phone.Country
	if country == "ES" || country == "UNKNOWN" {
		return nil
	}
	brand, _, ok := claimedBrand(ctx.Set, ctx.Claimed)
	if !ok {
		return nil
	}
	return &Finding{
		Delta:  0.40,
		Reason: fmt.Sprintf("Caller claims to be %s but the number is registered abroad (%s)", brand.Name, indicator.CountryName(country)),
		Tag:    TagContextMismatch,
	}
}

func checkUnknownCountry(ctx Context) *Finding {
	if ctx.Phone.Country != "UNKNOWN" {
		return nil
	}
	return &Finding{
		Delta:  0.20,
		Reason: "Country of origin could not be determined",
	}
}

func checkRepetitive(ctx Context) *Finding {
	if !ctx.Phone.Repetitive {
		return nil
	}
	return &Finding{
		Delta:  0.10,
		Reason: "Number has a repetitive digit pattern typical of spoofed callers",
	}
}

func checkScamContext(ctx Context) *Finding {
	if ctx.Claimed == "" {
		return nil
	}
	for _, kw := range scamContextKeywords {
		if strings.Contains(ctx.Claimed, kw) {
			return &Finding{
				Delta:  0.15,
				Reason: fmt.Sprintf("Reported message context contains lure keyword %q", kw),
			}
		}
	}
	return nil
}
