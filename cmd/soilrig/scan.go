package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lusi-lab/soilrig/pkg/camera"
)

type ScanCommand struct{}

// maxModesShown keeps the mode column readable; webcams advertise
// dozens of size/rate combinations.
const maxModesShown = 4

func (c *ScanCommand) Execute(args []string) error {
	infos, err := camera.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}
	if len(infos) == 0 {
		fmt.Println("No capture devices found.")
		return nil
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableDeviceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableRunningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)

	rows := make([][]string, 0, len(infos))
	statuses := make([]string, 0, len(infos))
	for _, info := range infos {
		modes := make([]string, 0, len(info.Modes))
		for _, m := range info.Modes {
			modes = append(modes, m.String())
		}
		modeCol := strings.Join(modes, ", ")
		if len(modes) > maxModesShown {
			modeCol = strings.Join(modes[:maxModesShown], ", ") +
				fmt.Sprintf(" +%d more", len(modes)-maxModesShown)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", info.Index),
			info.Label,
			info.Status,
			modeCol,
		})
		statuses = append(statuses, info.Status)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Device", "Status", "Modes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 1:
				return tableDeviceStyle
			case 2:
				if row >= 0 && row < len(statuses) && statuses[row] == "running" {
					return tableRunningStyle
				}
				return tableCellStyle
			default:
				return tableCellStyle
			}
		})

	fmt.Println(t.Render())
	return nil
}
