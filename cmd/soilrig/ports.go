package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial/enumerator"

	"github.com/lusi-lab/soilrig/pkg/gnss"
)

type PortsCommand struct {
	Probe   bool `long:"probe" description:"Watch each port for NMEA traffic"`
	Seconds int  `long:"seconds" default:"3" description:"Probe duration per port in seconds"`
	Baud    int  `long:"baud" default:"9600" description:"Probe baud rate"`
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot list serial ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tablePortStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		usb, vidpid, product := "", "", ""
		if p.IsUSB {
			usb = "yes"
			vidpid = p.VID + ":" + p.PID
			product = p.Product
		}
		rows = append(rows, []string{p.Name, usb, vidpid, product})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "USB", "VID:PID", "Product").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tablePortStyle
			}
			return tableCellStyle
		})

	fmt.Println(t.Render())

	if !c.Probe {
		return nil
	}

	fmt.Println()
	fmt.Printf("Watching each port for %ds at %d baud...\n", c.Seconds, c.Baud)
	timeout := time.Duration(c.Seconds) * time.Second
	found := 0
	for _, p := range ports {
		fmt.Printf("  %s: ", p.Name)
		res, err := gnss.ProbePort(p.Name, c.Baud, timeout)
		if err != nil {
			fmt.Println(dimStyle.Render(err.Error()))
			continue
		}
		if res.Sentences == 0 {
			fmt.Println(dimStyle.Render("no NMEA traffic"))
			continue
		}
		found++
		line := fmt.Sprintf("%d sentences (talker %s)", res.Sentences, res.Talker)
		if res.HasFix && res.Fix.Valid {
			line += fmt.Sprintf(", fix %.5f, %.5f", res.Fix.Lat, res.Fix.Lon)
		} else {
			line += ", no fix yet"
		}
		fmt.Println(successStyle.Render(line))
	}
	if found == 0 {
		fmt.Println("No NMEA talkers found.")
	}
	return nil
}
