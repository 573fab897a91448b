// Package usage is the Postgres side of plan-limit metering.
//
// It provides the limits.Source that reads plan_limits, the per-resource
// counters behind limits.Meter, the Tracker that accumulates monthly
// usage_metrics rows and an S3-backed storage counter.
//
//	source := usage.NewPlanLimitSource(pool)
//	counters := usage.Counters(pool, usage.WithObjectStore(s3Client, "uploads"))
//	tracker := usage.NewTracker(pool, usage.WithRunner(runner))
//
//	tracker.TrackAsync(ctx, userID, limits.ResourceAPICalls, 1)
package usage
