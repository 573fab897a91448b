package limits

// Decision is the result of checking one resource for one tenant.
type Decision struct {
	Resource Resource `json:"resource"`
	Allowed  bool     `json:"allowed"`
	Current  int64    `json:"current"`
	Limit    Limit    `json:"limit"`
	Period   Period   `json:"period"`
	Message  string   `json:"message,omitempty"`
	// Degraded is set when usage could not be counted and the check failed open.
	Degraded bool   `json:"degraded,omitempty"`
	Plan     string `json:"plan,omitempty"`
	Origin   Origin `json:"origin,omitempty"`
}

// Unlimited reports whether the resource has no ceiling.
func (d Decision) Unlimited() bool { return d.Limit.IsUnlimited() }

// Remaining returns how many more units fit under the limit, or -1 when unlimited.
func (d Decision) Remaining() int64 {
	if d.Limit.IsUnlimited() {
		return -1
	}
	return max(int64(d.Limit)-d.Current, 0)
}

// Percentage returns usage as 0-100, or -1 for unlimited.
func (d Decision) Percentage() int {
	if d.Limit.IsUnlimited() {
		return -1
	}
	if d.Limit == 0 {
		return 100
	}
	return int(min(d.Current*100/int64(d.Limit), 100))
}
