// Package subscription answers one question for the rest of saascore: which
// plan is this user on right now?
//
// Billing data (provider customer, subscription and product ids) lives on the
// users row and is matched against the plans catalog. The result is a Plan
// carrying a closed Tier value; ResolveTier is the only place where plan keys
// or titles are compared as strings. Anything below this package switches on
// Tier.
//
// Users without billing data, or with a product id that matches no catalog
// entry, are treated as FreePlan.
package subscription
