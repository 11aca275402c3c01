package geocoding

import (
	"strings"

	"github.com/zatekoja/maternidades/pkg/utils"
)

// CanonicalAddress joins the non-empty address parts with ", ", lowercases
// the result and collapses whitespace. It is the address cache key.
func CanonicalAddress(street, number, neighborhood, municipality, uf string) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{street, number, neighborhood, municipality, uf} {
		p = utils.CollapseSpaces(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ToLower(strings.Join(parts, ", "))
}

// cacheKey normalizes a free-form address the same way CanonicalAddress does.
func cacheKey(address string) string {
	return strings.ToLower(utils.CollapseSpaces(address))
}
