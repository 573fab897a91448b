package limits

import (
	"encoding/json"
	"strconv"
)

// Limit is the maximum allowed count for a resource. Unlimited means no
// ceiling; any negative value is treated as Unlimited.
type Limit int64

// Unlimited represents a resource with no limit.
const Unlimited Limit = -1

func (l Limit) IsUnlimited() bool { return l < 0 }

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return strconv.FormatInt(int64(l), 10)
}

// MarshalJSON encodes Unlimited as null.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return []byte("null"), nil
	}
	return json.Marshal(int64(l))
}

func (l *Limit) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = Unlimited
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = normalize(v)
	return nil
}

// LimitFromNullable converts a nullable column value.
func LimitFromNullable(v *int64) Limit {
	if v == nil {
		return Unlimited
	}
	return normalize(*v)
}

func normalize(v int64) Limit {
	if v < 0 {
		return Unlimited
	}
	return Limit(v)
}

// Allowance is a resolved limit together with its accounting period.
type Allowance struct {
	Limit  Limit  `json:"limit"`
	Period Period `json:"period"`
}
