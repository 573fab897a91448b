package subscription

import "time"

// Interval is the billing cadence of a paid plan.
type Interval string

const (
	IntervalNone  Interval = ""
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan is a user's resolved subscription.
type Plan struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Tier     Tier     `json:"tier"`
	Interval Interval `json:"interval,omitempty"`
	IsPaid   bool     `json:"is_paid"`

	CustomerID       string    `json:"customer_id,omitempty"`
	SubscriptionID   string    `json:"subscription_id,omitempty"`
	ProductID        string    `json:"product_id,omitempty"`
	CurrentPeriodEnd time.Time `json:"current_period_end,omitzero"`
}

// FreePlan is returned for users without billing data.
var FreePlan = Plan{
	Key:   "free",
	Title: "Free",
	Tier:  TierFree,
}
