// Package estimate derives the published timeline and budget buckets from a
// suggested page count.
//
// The rule is fixed: every page costs three working days at 500 per day.
// Bucket edges are part of the published offer and must not be normalized:
// the budget buckets are lower-exclusive on 5000 but upper-inclusive on 10000
// and 20000, and the timeline buckets are upper-inclusive on 15 and 60.
package estimate

const (
	DaysPerPage = 3
	DailyRate   = 500
)

// Budget buckets.
const (
	BudgetUnder5k  = "under 5k"
	Budget5kTo10k  = "5k-10k"
	Budget10kTo20k = "10k-20k"
	BudgetOver20k  = "over 20k"
)

// Timeline buckets.
const (
	TimelineFast     = "fast"
	TimelineNormal   = "normal"
	TimelineFlexible = "flexible"
)

// Derivation holds the raw numbers and their buckets for one page count.
type Derivation struct {
	PageCount int    `json:"page_count"`
	Days      int    `json:"days"`
	Amount    int    `json:"amount"`
	Timeline  string `json:"timeline_bucket"`
	Budget    string `json:"budget_bucket"`
}

// Days returns the working days for pageCount pages.
func Days(pageCount int) int {
	return pageCount * DaysPerPage
}

// Amount returns the price for pageCount pages.
func Amount(pageCount int) int {
	return pageCount * DaysPerPage * DailyRate
}

// Budget classifies the amount for pageCount pages.
func Budget(pageCount int) string {
	return BudgetForAmount(Amount(pageCount))
}

// BudgetForAmount classifies a raw amount.
func BudgetForAmount(amount int) string {
	switch {
	case amount < 5000:
		return BudgetUnder5k
	case amount <= 10000:
		return Budget5kTo10k
	case amount <= 20000:
		return Budget10kTo20k
	default:
		return BudgetOver20k
	}
}

// Timeline classifies the working days for pageCount pages.
func Timeline(pageCount int) string {
	return TimelineForDays(Days(pageCount))
}

// TimelineForDays classifies a raw number of working days.
func TimelineForDays(days int) string {
	switch {
	case days <= 15:
		return TimelineFast
	case days <= 60:
		return TimelineNormal
	default:
		return TimelineFlexible
	}
}

// Derive computes every derived value for pageCount pages.
func Derive(pageCount int) Derivation {
	return Derivation{
		PageCount: pageCount,
		Days:      Days(pageCount),
		Amount:    Amount(pageCount),
		Timeline:  Timeline(pageCount),
		Budget:    Budget(pageCount),
	}
}
