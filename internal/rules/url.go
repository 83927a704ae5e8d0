package rules

import (
	"fmt"
	"strings"
)

// urlRules is the URL battery, run in order. Shorteners are deliberately
// not scored here; the classifier handles them as a category of their own.
var urlRules = []Rule{
	{Name: "suspicious_tld", Check: checkSuspiciousTLD},
	{Name: "ip_literal_host", Check: checkIPLiteral},
	{Name: "hyphenated_domain", Check: checkHyphens},
	{Name: "phishing_keyword", Check: checkPhishingKeyword},
	{Name: "long_domain", Check: checkLongDomain},
	{Name: "excessive_subdomains", Check: checkSubdomainDepth},
	{Name: "non_ascii_domain", Check: checkNonASCII},
	{Name: "redirect_param", Check: checkRedirectParam},
	{Name: "embedded_credentials", Check: checkAtSign},
	{Name: "percent_escapes", Check: checkPercentEscapes},
	{Name: "brand_impersonation", Check: checkURLBrand},
	{Name: "sender_context_mismatch", Check: checkURLContextMismatch},
}

func checkSuspiciousTLD(ctx Context) *Finding {
	weight := ctx.Set.TLDWeight(ctx.URL.TLD)
	if weight <= 0 {
		return nil
	}
	return &Finding{
		Delta:  weight,
		Reason: fmt.Sprintf("Suspicious top-level domain .%s", ctx.URL.TLD),
	}
}

func checkIPLiteral(ctx Context) *Finding {
	if !ctx.URL.IPLiteralHost {
		return nil
	}
	return &Finding{
		Delta:  0.40,
		Reason: "URL uses a raw IP address instead of a domain name",
	}
}

func checkHyphens(ctx Context) *Finding {
	if strings.Count(ctx.URL.Domain, "-") < 3 {
		return nil
	}
	return &Finding{
		Delta:  0.15,
		Reason: "Domain contains an unusual number of hyphens",
	}
}

// checkPhishingKeyword fires on the first keyword found anywhere in the
// normalized URL; additional keywords do not stack.
func checkPhishingKeyword(ctx Context) *Finding {
	full := strings.ToLower(ctx.URL.Normalized)
	for _, kw := range ctx.Set.PhishingKeywords() {
		if strings.Contains(full, kw) {
			return &Finding{
				Delta:  0.15,
				Reason: fmt.Sprintf("URL contains phishing keyword %q", kw),
			}
		}
	}
	return nil
}

func checkLongDomain(ctx Context) *Finding {
	if len(ctx.URL.Domain) <= 50 {
		return nil
	}
	return &Finding{
		Delta:  0.20,
		Reason: "Domain name is unusually long",
	}
}

func checkSubdomainDepth(ctx Context) *Finding {
	if strings.Count(ctx.URL.Domain, ".") <= 3 {
		return nil
	}
	return &Finding{
		Delta:  0.25,
		Reason: "Domain has an excessive number of subdomain levels",
	}
}

func checkNonASCII(ctx Context) *Finding {
	for _, r := range ctx.URL.Domain {
		if r > 127 {
			return &Finding{
				Delta:  0.50,
				Reason: "Domain contains non-ASCII characters, possible homograph attack",
			}
		}
	}
	return nil
}

func checkRedirectParam(ctx Context) *Finding {
	if !ctx.URL.HasRedirectParam {
		return nil
	}
	return &Finding{
		Delta:  0.15,
		Reason: "URL carries a redirect-style query parameter",
	}
}

func checkAtSign(ctx Context) *Finding {
	if !strings.Contains(ctx.URL.Raw, "@") {
		return nil
	}
	return &Finding{
		Delta:  0.40,
		Reason: "URL contains an @ sign, the real destination may be hidden",
	}
}

func checkPercentEscapes(ctx Context) *Finding {
	if strings.Count(ctx.URL.Raw, "%") <= 5 {
		return nil
	}
	return &Finding{
		Delta:  0.20,
		Reason: "URL is heavily percent-encoded",
	}
}

func checkURLBrand(ctx Context) *Finding {
	match := matchBrand(ctx.Set, ctx.URL.Domain)
	if match == nil || match.official {
		return nil
	}
	return &Finding{
		Delta:  0.40,
		Reason: match.reason,
		Tag:    TagTyposquatting,
	}
}

// checkURLContextMismatch fires when the reporter says the message claimed
// to be from a brand but the URL does not belong to that brand.
func checkURLContextMismatch(ctx Context) *Finding {
	brand, family, ok := claimedBrand(ctx.Set, ctx.Claimed)
	if !ok || officialFor(brand, ctx.URL.Domain) {
		return nil
	}

	delta := 0.35
	if family == "bank" {
		delta = 0.40
	}
	return &Finding{
		Delta:  delta,
		Reason: fmt.Sprintf("Message claims to be from %s but links to an unrelated domain", brand.Name),
		Tag:    TagContextMismatch,
	}
}
