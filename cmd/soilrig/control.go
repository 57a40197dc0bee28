package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lusi-lab/soilrig/pkg/hw"
	"github.com/lusi-lab/soilrig/pkg/rig"
)

type ControlCommand struct {
	DryRun bool `long:"dry-run" description:"Drive a simulated rig instead of the GPIO header"`
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// Hardware fitted to each actuator channel, for the status table.
var deviceLabels = map[rig.DeviceName]string{
	rig.Auger:       "Auger Motor (NEO 550)",
	rig.Platform:    "Platform Motor (NEO 550)",
	rig.ChamberLid:  "Chamber Lid (SM-S2309S)",
	rig.SoilDropper: "Soil Dropper (SM-S2309S)",
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// dryOutputs accepts every write so the TUI can be exercised away from
// the rig.
type dryOutputs struct{}

func (dryOutputs) Write(*rig.Device) error { return nil }
func (dryOutputs) Rest(*rig.Device) error  { return nil }
func (dryOutputs) Halt(*rig.Device) error  { return nil }

type controlModel struct {
	disp     *rig.Dispatcher
	dry      bool
	width    int
	height   int
	showHelp bool
	quitting bool
}

func (m controlModel) Init() tea.Cmd {
	return tick()
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "1", "2", "3", "4":
			// Command errors surface through the notices box.
			_ = m.disp.Select(int(key[0] - '0'))
		case "enter", " ":
			_ = m.disp.Activate()
		case "up", "+", "=":
			_ = m.disp.Adjust(1)
		case "down", "-":
			_ = m.disp.Adjust(-1)
		case "r":
			_ = m.disp.Reverse()
		case "x":
			_ = m.disp.StopAll()
		case "h":
			m.showHelp = !m.showHelp
		}
		return m, nil

	case tickMsg:
		// State lives in the dispatcher; the tick just redraws it.
		return m, tick()
	}

	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Rig control stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Soilrig Control"))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  [%s]", m.disp.Phase())))
	if m.dry {
		sb.WriteString(dimStyle.Render("  (dry run)"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderDevices())
	sb.WriteString("\n\n")

	notices := m.disp.Notices()
	var lines string
	if len(notices) == 0 {
		lines = dimStyle.Render("Press 1-4 to select a device")
	} else {
		lines = strings.Join(notices, "\n")
	}
	width := m.width - 4
	if width < 40 {
		width = 40
	}
	sb.WriteString(boxStyle.Width(width).Render(lines))
	sb.WriteString("\n")
	if m.showHelp {
		help := strings.Join([]string{
			"1-4      select a device",
			"enter    energise the selection",
			"up / +   raise speed or angle one step",
			"down / - lower speed or angle one step",
			"r        reverse the platform direction",
			"x        stop all outputs",
			"h        close this help",
			"q        quit and release the rig",
		}, "\n")
		sb.WriteString(boxStyle.Width(width).Render(help))
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render("1-4 select | enter activate | up/down adjust | r reverse | x stop all | h help | q quit"))
	sb.WriteString("\n")

	return sb.String()
}

func (m controlModel) renderDevices() string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableDeviceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableOnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableOffStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	tableSelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Padding(0, 1)

	devices := m.disp.Devices()
	sel := m.disp.SelectedDevice()

	selRow := -1
	rows := make([][]string, 0, len(devices))
	enabled := make([]bool, 0, len(devices))
	for i, d := range devices {
		if d == sel {
			selRow = i
		}
		output := "OFF"
		if d.Enabled {
			output = "ON"
		}
		dir := ""
		if d.Reversible() {
			if d.Reversed {
				dir = "DOWN"
			} else {
				dir = "UP"
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", d.ID),
			deviceLabels[d.Name],
			d.Pin,
			output,
			fmt.Sprintf("%d %s", d.Value, d.Kind.Unit()),
			dir,
		})
		enabled = append(enabled, d.Enabled)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Device", "Pin", "Output", "Value", "Dir").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row == selRow {
				return tableSelStyle
			}
			switch col {
			case 1:
				return tableDeviceStyle
			case 3:
				if row >= 0 && row < len(enabled) && enabled[row] {
					return tableOnStyle
				}
				return tableOffStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render()
}

func (c *ControlCommand) Execute(args []string) error {
	devices := rig.DefaultDevices()

	var out rig.Outputs
	if c.DryRun {
		out = dryOutputs{}
	} else {
		acts, err := hw.OpenActuators(devices)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open rig outputs: %v\n", err)
			os.Exit(1)
		}
		out = acts
	}

	disp := rig.NewDispatcher(devices, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(controlModel{disp: disp, dry: c.DryRun}, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		_ = disp.Quit()
		log.Fatalf("Error running program: %v", err)
	}

	// Neutral pulses first, carriers halted after the settle delay. Runs
	// on the interrupt path too.
	if err := disp.Quit(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	fmt.Println("All outputs released.")
	return nil
}
