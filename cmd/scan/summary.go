package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/skswe/tenxsqueeze/internal/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	winStyle  = cellStyle.Foreground(lipgloss.Color("#10B981"))
	lossStyle = cellStyle.Foreground(lipgloss.Color("#EF4444"))
)

var summaryHeaders = []string{"kind", "timeframe", "n_tf", "n", "q", "thresh", "t", "count", "win %", "mean final", "mean max", "mean min"}

const finalCol = 9

// summaryRows formats up to top summaries (all when top <= 0).
func summaryRows(summaries []scan.Summary, top int) [][]string {
	if top > 0 && len(summaries) > top {
		summaries = summaries[:top]
	}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Kind,
			s.Timeframe,
			strconv.Itoa(s.TFCount),
			strconv.Itoa(s.N),
			optionalInt(s.Q),
			optionalFloat(s.Thresh),
			strconv.Itoa(s.T),
			strconv.Itoa(s.Count),
			fmt.Sprintf("%.1f", s.WinRate*100),
			fmt.Sprintf("%+.3f", s.MeanFinal),
			fmt.Sprintf("%+.3f", s.MeanMax),
			fmt.Sprintf("%+.3f", s.MeanMin),
		})
	}
	return rows
}

func renderSummary(strategy string, summaries []scan.Summary, top int) string {
	if len(summaries) == 0 {
		return titleStyle.Render(strategy + ": no signal groups found")
	}
	rows := summaryRows(summaries, top)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == finalCol && row >= 0 && row < len(rows) {
				if summaries[row].MeanFinal > 0 {
					return winStyle
				}
				return lossStyle
			}
			return cellStyle
		})
	title := fmt.Sprintf("%s: %d cells (showing %d)", strategy, len(summaries), len(rows))
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), t.Render())
}

func optionalInt(v int) string {
	if v == 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func optionalFloat(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
