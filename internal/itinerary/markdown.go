package itinerary

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/dates"
	"github.com/pkordes/itinerary/internal/domain"
)

// Markdown renders the itinerary table and the validation warnings as a
// single markdown document.
func Markdown(rows []domain.DayRow, warnings []string) string {
	var b strings.Builder

	b.WriteString("# Your Trip Itinerary\n\n")

	if len(rows) > 0 {
		fmt.Fprintf(&b, "**Trip Duration:** %s to %s (%d days)\n\n",
			rows[0].Date, rows[len(rows)-1].Date, len(rows))
	}

	b.WriteString("## Daily Itinerary\n\n")
	if len(rows) == 0 {
		b.WriteString("*No itinerary data available.*\n\n")
	} else {
		b.WriteString("| Date | Day | Lodging | Flights | Car |\n")
		b.WriteString("|------|-----|---------|---------|-----|\n")
		for _, row := range rows {
			date, weekday := row.Date, ""
			if d, err := time.Parse(dates.Layout, row.Date); err == nil {
				date, weekday = d.Format("Jan 2, 2006"), d.Format("Mon")
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				date, weekday, cell(row.Hotels), cell(row.Flights), cell(row.Cars))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Validation Warnings\n\n")
	if len(warnings) == 0 {
		b.WriteString("✅ **None** - Your itinerary looks good!\n")
	} else {
		b.WriteString("⚠️ **Please review the following:**\n\n")
		for _, w := range warnings {
			b.WriteString("- " + w + "\n")
		}
	}

	return b.String()
}

// cell joins items with <br>, or returns "-" for an empty list.
func cell(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	escaped := make([]string, len(items))
	for i, it := range items {
		escaped[i] = strings.ReplaceAll(it, "|", `\|`)
	}
	return strings.Join(escaped, "<br>")
}
