package seller

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/guarzo/vinyldeals/internal/model"
)

// Aliases maps a seller account to the canonical account it belongs to.
// Both sides are written "PLATFORM:sellerID", for example
// "EBAY:groovemerchant" = "DISCOGS:groovemerchant". The platform is
// case-insensitive; the seller id is matched exactly.
type Aliases map[string]string

type identity struct {
	platform model.Platform
	sellerID string
}

func parseIdentity(raw string) (identity, error) {
	platform, id, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return identity{}, fmt.Errorf("seller identity %q: expected PLATFORM:sellerID", raw)
	}
	p := model.Platform(strings.ToUpper(strings.TrimSpace(platform)))
	if !p.Valid() {
		return identity{}, fmt.Errorf("seller identity %q: unknown platform %q", raw, platform)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return identity{}, fmt.Errorf("seller identity %q: missing seller id", raw)
	}
	return identity{platform: p, sellerID: id}, nil
}

func (i identity) key() string {
	return string(i.platform) + ":" + i.sellerID
}

// Validate rejects malformed identities, self aliases, and chains.
func (a Aliases) Validate() error {
	from := make(map[string]bool, len(a))
	to := make(map[string]string, len(a))
	var errs []error
	for _, raw := range a.sortedKeys() {
		src, err := parseIdentity(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dst, err := parseIdentity(a[raw])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if src.key() == dst.key() {
			errs = append(errs, fmt.Errorf("seller alias %q points at itself", raw))
			continue
		}
		if from[src.key()] {
			errs = append(errs, fmt.Errorf("seller alias %q is listed twice", src.key()))
			continue
		}
		from[src.key()] = true
		to[src.key()] = dst.key()
	}
	for _, src := range sortedValues(to) {
		if from[to[src]] {
			errs = append(errs, fmt.Errorf("seller alias %q points at %q, which is itself an alias", src, to[src]))
		}
	}
	return errors.Join(errs...)
}

func (a Aliases) sortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Identities resolves seller accounts to their canonical identity so that one
// shop selling on several platforms is analyzed as a single seller.
type Identities struct {
	canonical map[string]identity
}

// NewIdentities validates aliases and returns a resolver.
func NewIdentities(aliases Aliases) (*Identities, error) {
	if err := aliases.Validate(); err != nil {
		return nil, err
	}
	ids := &Identities{canonical: make(map[string]identity, len(aliases))}
	for raw, target := range aliases {
		src, _ := parseIdentity(raw)
		dst, _ := parseIdentity(target)
		ids.canonical[src.key()] = dst
	}
	return ids, nil
}

// Resolve returns s under its canonical platform and seller id. Profile
// fields are kept. Unknown sellers and a nil receiver return s unchanged.
func (ids *Identities) Resolve(s model.Seller) model.Seller {
	if ids == nil || len(ids.canonical) == 0 {
		return s
	}
	dst, ok := ids.canonical[s.Key()]
	if !ok {
		return s
	}
	s.Platform = dst.platform
	s.SellerID = dst.sellerID
	return s
}

// Len reports the number of aliased accounts.
func (ids *Identities) Len() int {
	if ids == nil {
		return 0
	}
	return len(ids.canonical)
}
