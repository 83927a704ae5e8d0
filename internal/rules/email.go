package rules

import (
	"fmt"
	"strings"
)

// localPartKeywords are tokens in the local part that scammers use to
// look like an institutional sender.
var localPartKeywords = []string{
	"admin", "support", "security", "verify", "account", "update",
	"billing", "alert", "notification", "winner", "prize", "urgent",
}

var emailRules = []Rule{
	{Name: "suspicious_tld", Check: checkEmailTLD},
	{Name: "brand_impersonation", Check: checkEmailBrand},
	{Name: "sender_context_mismatch", Check: checkEmailContextMismatch},
	{Name: "disposable_domain", Check: checkDisposable},
	{Name: "digit_heavy_local_part", Check: checkDigitHeavyLocal},
	{Name: "local_part_keyword", Check: checkLocalKeywords},
}

func checkEmailTLD(ctx Context) *Finding {
	weight := ctx.Set.TLDWeight(ctx.Email.TLD)
	if weight <= 0 {
		return nil
	}
	return &Finding{
		Delta:  weight,
		Reason: fmt.Sprintf("Sender domain uses suspicious top-level domain .%s", ctx.Email.TLD),
	}
}

func checkEmailBrand(ctx Context) *Finding {
	match := matchBrand(ctx.Set, ctx.Email.Domain)
	if match == nil || match.official {
		return nil
	}
	return &Finding{
		Delta:  0.40,
		Reason: match.reason,
		Tag:    TagTyposquatting,
	}
}

func checkEmailContextMismatch(ctx Context) *Finding {
	brand, _, ok := claimedBrand(ctx.Set, ctx.Claimed)
	if !ok || officialFor(brand, ctx.Email.Domain) {
		return nil
	}
	return &Finding{
		Delta:  0.45,
		Reason: fmt.Sprintf("Sender claims to be %s but the address domain is not an official %s domain", brand.Name, brand.Name),
		Tag:    TagContextMismatch,
	}
}

func checkDisposable(ctx Context) *Finding {
	if !ctx.Email.Disposable {
		return nil
	}
	return &Finding{
		Delta:  0.30,
		Reason: "Sender uses a disposable email provider",
	}
}

// checkDigitHeavyLocal flags local parts where digits outnumber letters,
// typical of bulk-generated accounts.
func checkDigitHeavyLocal(ctx Context) *Finding {
	local := ctx.Email.LocalPart
	digits := 0
	for i := 0; i < len(local); i++ {
		if local[i] >= '0' && local[i] <= '9' {
			digits++
		}
	}
	if digits*2 <= len(local) {
		return nil
	}
	return &Finding{
		Delta:  0.20,
		Reason: "Local part is mostly digits",
	}
}

// checkLocalKeywords adds one finding per matched keyword; the clamp in
// the evaluator bounds the total.
func checkLocalKeywords(ctx Context) *Finding {
	local := strings.ToLower(ctx.Email.LocalPart)
	matched := []string{}
	for _, kw := range localPartKeywords {
		if strings.Contains(local, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	return &Finding{
		Delta:  0.15 * float64(len(matched)),
		Reason: fmt.Sprintf("Local part contains lure keywords: %s", strings.Join(matched, ", ")),
	}
}
