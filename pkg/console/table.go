package console

import (
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TableConfig describes a table to render.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

// RenderTable renders config with a rounded border. Without color the border
// and padding are kept so columns still line up. Returns "" when there is nothing
// to show.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 && len(config.Rows) == 0 {
		return ""
	}
	consoleLog.Printf("Rendering table: title=%q rows=%d", config.Title, len(config.Rows))

	rows := config.Rows
	totalIdx := -1
	if config.ShowTotal && len(config.TotalRow) > 0 {
		rows = append(append([][]string{}, rows...), config.TotalRow)
		totalIdx = len(rows) - 1
	}

	color := isColorEnabled()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(config.Headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row == table.HeaderRow:
				s = styles.TableHeader
			case row == totalIdx:
				s = styles.TableTotal
			default:
				s = styles.TableCell
			}
			if !color {
				s = s.UnsetBold().UnsetForeground()
			}
			return s
		})
	if color {
		t = t.BorderStyle(styles.TableBorder)
	}

	var sb strings.Builder
	if config.Title != "" {
		sb.WriteString(applyStyle(styles.TableTitle, config.Title))
		sb.WriteString("\n")
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	return sb.String()
}
