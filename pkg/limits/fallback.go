package limits

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cenety/saascore/pkg/subscription"
)

//go:embed fallback.yaml
var defaultFallbackYAML []byte

// FallbackTable holds hardcoded limits per tier. A missing tier or resource
// means unlimited.
type FallbackTable map[subscription.Tier]map[Resource]Limit

// DefaultFallback returns the built-in table: three customers, three QR codes
// and three documents per month on Free, unlimited everywhere else.
func DefaultFallback() FallbackTable {
	t, err := ParseFallback(defaultFallbackYAML)
	if err != nil {
		panic(fmt.Sprintf("limits: embedded fallback table is invalid: %v", err))
	}
	return t
}

// ParseFallback decodes a YAML document keyed by tier name then resource tag.
func ParseFallback(data []byte) (FallbackTable, error) {
	var raw map[string]map[string]*int64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrInvalidFallback, err)
	}

	table := make(FallbackTable, len(raw))
	for tierName, entries := range raw {
		tier, err := subscription.ParseTier(tierName)
		if err != nil {
			return nil, errors.Join(ErrInvalidFallback, err)
		}
		limits := make(map[Resource]Limit, len(entries))
		for tag, v := range entries {
			res, err := ParseResource(tag)
			if err != nil {
				return nil, errors.Join(ErrInvalidFallback, err)
			}
			limits[res] = LimitFromNullable(v)
		}
		table[tier] = limits
	}
	return table, nil
}

// ReadFallback decodes a fallback table from r.
func ReadFallback(r io.Reader) (FallbackTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidFallback, err)
	}
	return ParseFallback(data)
}

// LoadFallbackFile reads a fallback table from disk. An empty path returns
// the default table.
func LoadFallbackFile(path string) (FallbackTable, error) {
	if path == "" {
		return DefaultFallback(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidFallback, err)
	}
	defer func() { _ = f.Close() }()
	return ReadFallback(f)
}

// Lookup returns the limit for res on tier. The boolean is false when the
// table has no entry, in which case the limit is Unlimited.
func (t FallbackTable) Lookup(tier subscription.Tier, res Resource) (Limit, bool) {
	limit, ok := t[tier][res]
	if !ok {
		return Unlimited, false
	}
	return limit, true
}

// Clone returns a deep copy.
func (t FallbackTable) Clone() FallbackTable {
	out := make(FallbackTable, len(t))
	for tier, limits := range t {
		out[tier] = maps.Clone(limits)
	}
	return out
}
