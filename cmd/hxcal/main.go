package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/lusi-lab/soilrig/pkg/hw"
	"github.com/lusi-lab/soilrig/pkg/rig"
	"github.com/lusi-lab/soilrig/pkg/scale"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// calSamples is how many conversions each calibration reading averages.
const calSamples = 15

func main() {
	fmt.Println(headerStyle.Render("Soilrig Scale Calibration"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := rig.LoadConfig()
	if err != nil {
		cfg = rig.DefaultConfig()
	}

	adc, err := hw.OpenHX711(cfg.Scale.DataPin, cfg.Scale.ClockPin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open HX711: %v\n", err)
		os.Exit(1)
	}
	s := scale.New(adc, 1)
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(subHeaderStyle.Render("━━━ Step 1: Tare ━━━"))
	fmt.Println()
	waitForUser("Remove all weight from the platform.")

	fmt.Printf("Averaging %d readings...\n", calSamples)
	if err := s.Tare(ctx, calSamples); err != nil {
		fmt.Fprintf(os.Stderr, "Tare failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Tare complete (offset %.0f counts)", s.Offset())))

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Step 2: Reference mass ━━━"))
	fmt.Println()

	grams := askMass()
	waitForUser(fmt.Sprintf("Place the %g g reference mass on the platform.", grams))

	fmt.Printf("Averaging %d readings...\n", calSamples)
	avg, err := s.ReadAverage(ctx, calSamples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(1)
	}

	factor := (avg - s.Offset()) / grams
	if factor == 0 {
		fmt.Fprintln(os.Stderr, "Reading did not change with the mass on; check the load cell wiring.")
		os.Exit(1)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Factor: %.3f counts per gram", factor)))

	if raw, err := s.ReadAverage(ctx, 5); err == nil {
		fmt.Printf("Check reading: %.2f g\n", (raw-s.Offset())/factor)
	}

	cfg.Scale.Factor = factor
	cfg.Scale.Offset = s.Offset()
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Calibration complete!"))
	fmt.Printf("Configuration saved to %s\n", rig.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Check the scale with: " + headerStyle.Render("soilrig weigh"))
}

func askMass() float64 {
	var massStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reference mass in grams").
				Placeholder("100").
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&massStr),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(massStr), 64)
	return v
}

func waitForUser(prompt string) {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}
