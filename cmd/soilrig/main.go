package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Control ControlCommand `command:"control" description:"Drive the rig's motors and servos interactively"`
	Weigh   WeighCommand   `command:"weigh" description:"Stream load-cell weight readings"`
	Spectro SpectroCommand `command:"spectro" description:"Run the diffraction-grating spectrometer"`
	Camera  CameraCommand  `command:"camera" description:"Capture geotagged stills and video from the survey camera"`
	Scan    ScanCommand    `command:"scan" description:"List attached capture devices and their modes"`
	Ports   PortsCommand   `command:"ports" description:"List serial ports and probe them for GNSS talkers"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Soilrig - control CLI for the field soil analysis rig"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
