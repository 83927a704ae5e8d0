package rules

import (
	"fmt"
	"strings"

	"github.com/lvonguyen/scamshield/internal/reputation"
)

// brandMatch is the outcome of checking a domain against the brand lists.
type brandMatch struct {
	brand    string
	family   string
	official bool
	reason   string
}

// matchBrand checks a domain against every brand family. Official domains
// win immediately and suppress all impersonation findings. Otherwise the
// first brand the domain imitates is returned, textual containment before
// edit distance, banks before telcos.
func matchBrand(set *reputation.Set, domain string) *brandMatch {
	domain = strings.ToLower(domain)
	label := domain
	if idx := strings.Index(domain, "."); idx >= 0 {
		label = domain[:idx]
	}

	for _, family := range set.BrandFamilies() {
		for _, brand := range family.Brands {
			for _, official := range brand.Domains {
				if domain == official || strings.HasSuffix(domain, "."+official) {
					return &brandMatch{brand: brand.Name, family: family.Name, official: true}
				}
			}
		}
	}

	for _, family := range set.BrandFamilies() {
		for _, brand := range family.Brands {
			if strings.Contains(domain, brand.Name) {
				return &brandMatch{
					brand:  brand.Name,
					family: family.Name,
					reason: fmt.Sprintf("Domain imitates %s but is not an official %s domain", brand.Name, brand.Name),
				}
			}
			if len(brand.Name) >= 4 {
				if d := levenshtein(label, brand.Name); d >= 1 && d <= 2 {
					return &brandMatch{
						brand:  brand.Name,
						family: family.Name,
						reason: fmt.Sprintf("Domain %q is %d edits away from brand %s", domain, d, brand.Name),
					}
				}
			}
		}
	}

	return nil
}

// claimedBrand finds the first brand named in the reporter-supplied
// context, banks before telcos.
func claimedBrand(set *reputation.Set, claimed string) (reputation.Brand, string, bool) {
	if claimed == "" {
		return reputation.Brand{}, "", false
	}
	for _, family := range set.BrandFamilies() {
		for _, brand := range family.Brands {
			if strings.Contains(claimed, brand.Name) {
				return brand, family.Name, true
			}
		}
	}
	return reputation.Brand{}, "", false
}

// officialFor reports whether the domain belongs to the brand.
func officialFor(brand reputation.Brand, domain string) bool {
	domain = strings.ToLower(domain)
	for _, official := range brand.Domains {
		if domain == official || strings.HasSuffix(domain, "."+official) {
			return true
		}
	}
	return false
}

// levenshtein computes edit distance with the standard two-row DP.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
