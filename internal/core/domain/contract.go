package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultContractName is used when no contract name is configured.
const DefaultContractName = "Contract"

// ContractIdentity names the contract a coordinator tracks.
type ContractIdentity struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RateWithOption string `json:"rate_with_option"`
}

// NewContractIdentity resolves the contract identity for a mode.
// In opendata mode there is no portal contract, so a stable ID is
// derived from the contract name.
func NewContractIdentity(mode Mode, contractID, name string, plan RatePlan) ContractIdentity {
	if strings.TrimSpace(name) == "" {
		name = DefaultContractName
	}
	id := contractID
	if !mode.IsPortal() {
		id = "opendata_" + Slugify(name)
	}
	return ContractIdentity{
		ID:             id,
		Name:           name,
		RateWithOption: plan.WithOption(),
	}
}

// Slugify lowercases s, strips accents and joins words with underscores.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
