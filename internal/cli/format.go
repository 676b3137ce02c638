package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fpang/virtual-tryon/internal/usage"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatCost renders a dollar amount with four decimals.
func FormatCost(c float64) string {
	return fmt.Sprintf("$%.4f", c)
}

// PrintStats writes a human-readable usage report. now is used for the
// "tracking since" age.
func PrintStats(w io.Writer, stats usage.Stats, now time.Time) {
	since := time.UnixMilli(stats.SessionStartedAt)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "============================================")
	fmt.Fprintln(w, "Try-on Usage")
	fmt.Fprintln(w, "============================================")
	fmt.Fprintf(w, "Tracking since: %s (%s ago)\n", since.UTC().Format(time.RFC3339), FormatDurationShort(now.Sub(since)))
	fmt.Fprintf(w, "Generations:    %d (%d successful, %d failed)\n",
		stats.TotalGenerations, stats.SuccessfulGenerations, stats.FailedGenerations)
	fmt.Fprintf(w, "Tokens:         %d in / %d out (%d total)\n",
		stats.TotalInputTokens, stats.TotalOutputTokens, stats.TotalTokens)
	fmt.Fprintf(w, "Images:         %d in / %d out\n", stats.TotalInputImages, stats.TotalOutputImages)
	fmt.Fprintf(w, "Total cost:     %s\n", FormatCost(stats.TotalCost))
	fmt.Fprintf(w, "Avg per image:  %s\n", FormatCost(stats.AverageCostPerImage))
	fmt.Fprintf(w, "Avg tokens:     %.0f per generation\n", stats.AverageTokensPerGeneration)
	fmt.Fprintln(w, "--------------------------------------------")

	if len(stats.RecentGenerations) == 0 {
		fmt.Fprintln(w, "No generations recorded.")
		return
	}
	fmt.Fprintln(w, "Recent generations:")
	for _, r := range stats.RecentGenerations {
		status := "ok"
		if !r.Success {
			status = "FAILED"
		}
		fmt.Fprintf(w, "  %s  %s  %-6s  %s  %s\n",
			time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02 15:04:05"),
			r.ID, status, FormatCost(r.TotalCost), r.Model)
	}
}
