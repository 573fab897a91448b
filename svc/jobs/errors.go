package jobs

import "errors"

var ErrFailedToSchedule = errors.New("jobs: failed to schedule job")
