package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/studioweb/quoteai/pkg/models"
)

// formatUsageSummary formats usage summaries as a text table.
func formatUsageSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %-10s %8s %10s %10s %10s %10s\n",
		"Model", "Outcome", "Requests", "Prompt", "Completion", "Total", "Avg ms")
	b.WriteString(strings.Repeat("-", 89) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-25s %-10s %8d %10d %10d %10d %10d\n",
			r.Model, r.Outcome, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens, r.AvgLatencyMs)
	}
	return b.String()
}

// formatTopEntries formats cache entries as a text table.
func formatTopEntries(entries []models.CacheEntry) string {
	if len(entries) == 0 {
		return "Cache is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%6s  %-20s %-18s %5s  %s\n", "Uses", "Last Used", "Type", "Pages", "Description")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, e := range entries {
		desc := e.SourceText
		if utf8.RuneCountInString(desc) > 40 {
			desc = string([]rune(desc)[:37]) + "..."
		}
		fmt.Fprintf(&b, "%6d  %-20s %-18s %5d  %s\n",
			e.UseCount, e.LastUsedAt.Format("2006-01-02 15:04:05"), e.ProjectType, len(e.PageList), desc)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats, costPerCall float64) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:    %d\n"+
		"  Total uses: %d\n"+
		"  Reused:     %d\n"+
		"  Reuse rate: %.1f%%\n"+
		"  Savings:    $%.4f\n",
		stats.Entries, stats.TotalUses, stats.Reused(), stats.ReuseRate(), stats.Savings(costPerCall))
}
