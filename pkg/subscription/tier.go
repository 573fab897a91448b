package subscription

import (
	"fmt"
	"strings"
)

// Tier is the coarse plan family used for fallback limits.
type Tier uint8

const (
	TierFree Tier = iota
	TierPro
	TierEnterprise
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPro:
		return "pro"
	case TierEnterprise:
		return "enterprise"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier parses the canonical tier names only.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree, nil
	case "pro":
		return TierPro, nil
	case "enterprise":
		return TierEnterprise, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// ResolveTier maps billing plan identifiers to a Tier. The plan key is
// consulted first and the display title second. Free-family names map to
// TierFree, "pro" to TierPro, any other named plan to TierEnterprise. A plan
// with neither key nor title is free.
func ResolveTier(planKey, title string) Tier {
	for _, name := range []string{planKey, title} {
		switch n := strings.ToLower(strings.TrimSpace(name)); n {
		case "":
			continue
		case "free", "starter":
			return TierFree
		case "pro":
			return TierPro
		default:
			return TierEnterprise
		}
	}
	return TierFree
}
