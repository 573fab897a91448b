package usage

import "errors"

var (
	ErrPlanNotFound       = errors.New("usage: plan not found")
	ErrInvalidMetric      = errors.New("usage: invalid metric")
	ErrFailedToTrack      = errors.New("usage: failed to record usage")
	ErrFailedToLoadLimits = errors.New("usage: failed to load plan limits")
	ErrFailedToCount      = errors.New("usage: failed to count usage")
)
