// Package soilrig drives a Raspberry Pi field rig for soil analysis:
// four PWM actuators, an HX711 load cell, a diffraction-grating
// spectrometer and a geotagging survey camera.
//
// # Installation
//
//	go install github.com/lusi-lab/soilrig/cmd/soilrig@latest
//
// # Usage
//
// Drive the auger, platform and sample servos interactively:
//
//	soilrig control
//
// Stream weight readings from the load cell (calibrate once with
// hxcal):
//
//	soilrig weigh
//
// Run the spectrometer or the survey camera:
//
//	soilrig spectro
//	soilrig camera --gnss-port auto --scale --hfov 66
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/soilrig: CLI with control, weigh, spectro, camera, scan and
//     ports commands
//   - cmd/hxcal: load-cell calibration wizard
//   - pkg/rig: device table, command dispatcher and rig configuration
//   - pkg/hw: GPIO, PWM and HX711 access
//   - pkg/scale: weight conversion and the sampling loop
//   - pkg/spectro: spectrum processing, calibration and snapshots
//   - pkg/camera: capture, ground-scale estimation and sidecar files
//   - pkg/gnss: NMEA reader and serial port detection
package soilrig
