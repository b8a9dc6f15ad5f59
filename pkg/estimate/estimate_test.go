package estimate

import "testing"

func TestDeriveBoundaries(t *testing.T) {
	tests := []struct {
		pages    int
		days     int
		amount   int
		timeline string
		budget   string
	}{
		{1, 3, 1500, TimelineFast, BudgetUnder5k},
		{3, 9, 4500, TimelineFast, BudgetUnder5k},
		{4, 12, 6000, TimelineFast, Budget5kTo10k},
		{5, 15, 7500, TimelineFast, Budget5kTo10k},
		{6, 18, 9000, TimelineNormal, Budget5kTo10k},
		{7, 21, 10500, TimelineNormal, Budget10kTo20k},
		{13, 39, 19500, TimelineNormal, Budget10kTo20k},
		{14, 42, 21000, TimelineNormal, BudgetOver20k},
		{20, 60, 30000, TimelineNormal, BudgetOver20k},
		{21, 63, 31500, TimelineFlexible, BudgetOver20k},
	}

	for _, tt := range tests {
		d := Derive(tt.pages)
		if d.Days != tt.days {
			t.Errorf("pages=%d: days = %d, want %d", tt.pages, d.Days, tt.days)
		}
		if d.Amount != tt.amount {
			t.Errorf("pages=%d: amount = %d, want %d", tt.pages, d.Amount, tt.amount)
		}
		if d.Timeline != tt.timeline {
			t.Errorf("pages=%d: timeline = %q, want %q", tt.pages, d.Timeline, tt.timeline)
		}
		if d.Budget != tt.budget {
			t.Errorf("pages=%d: budget = %q, want %q", tt.pages, d.Budget, tt.budget)
		}
	}
}

func TestBudgetForAmountEdges(t *testing.T) {
	tests := map[int]string{
		0:     BudgetUnder5k,
		4999:  BudgetUnder5k,
		5000:  Budget5kTo10k,
		10000: Budget5kTo10k,
		10001: Budget10kTo20k,
		20000: Budget10kTo20k,
		20001: BudgetOver20k,
	}
	for amount, want := range tests {
		if got := BudgetForAmount(amount); got != want {
			t.Errorf("BudgetForAmount(%d) = %q, want %q", amount, got, want)
		}
	}
}

func TestTimelineForDaysEdges(t *testing.T) {
	tests := map[int]string{
		1:  TimelineFast,
		15: TimelineFast,
		16: TimelineNormal,
		60: TimelineNormal,
		61: TimelineFlexible,
	}
	for days, want := range tests {
		if got := TimelineForDays(days); got != want {
			t.Errorf("TimelineForDays(%d) = %q, want %q", days, got, want)
		}
	}
}
