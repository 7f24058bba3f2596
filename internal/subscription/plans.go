// Package subscription manages recurring access: one active subscription
// per student, billing-cycle computation, and the expiry/renewal sweeps.
package subscription

import (
	"github.com/shopspring/decimal"
)

// Plan is a subscription tier from the catalog.
type Plan struct {
	Name         string
	Price        decimal.Decimal
	DurationDays int
}

// lifetimeDays stands in for "no expiry": FREE and LIFETIME get an end
// date 100 years out instead of a nullable special case.
const lifetimeDays = 36500

// Plans is the subscription catalog.
var Plans = map[string]Plan{
	"FREE":        {Name: "Free", Price: decimal.Zero, DurationDays: 0},
	"MONTHLY":     {Name: "Monthly", Price: decimal.RequireFromString("29.99"), DurationDays: 30},
	"QUARTERLY":   {Name: "Quarterly", Price: decimal.RequireFromString("79.99"), DurationDays: 90},
	"SEMI_ANNUAL": {Name: "Semi-Annual", Price: decimal.RequireFromString("149.99"), DurationDays: 180},
	"ANNUAL":      {Name: "Annual", Price: decimal.RequireFromString("279.99"), DurationDays: 365},
	"LIFETIME":    {Name: "Lifetime", Price: decimal.RequireFromString("999.99"), DurationDays: lifetimeDays},
	"STUDENT":     {Name: "Student", Price: decimal.RequireFromString("19.99"), DurationDays: 30},
	"TEAM":        {Name: "Team", Price: decimal.RequireFromString("99.99"), DurationDays: 30},
}

// recurring reports whether a plan type carries a recurring charge.
func recurring(subType string) bool {
	return subType != "FREE" && subType != "LIFETIME"
}
