package camera

import (
	"fmt"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/prop"
)

// Info describes one enumerated capture device.
type Info struct {
	Index  int
	Label  string
	Name   string
	Status string
	Modes  []Mode
}

// Mode is one advertised capture format.
type Mode struct {
	Width     int
	Height    int
	FrameRate float32
	Format    string
}

func (m Mode) String() string {
	if m.FrameRate > 0 {
		return fmt.Sprintf("%dx%d@%g %s", m.Width, m.Height, m.FrameRate, m.Format)
	}
	return fmt.Sprintf("%dx%d %s", m.Width, m.Height, m.Format)
}

// List enumerates the capture devices without claiming them. Devices
// already streaming are reported without modes.
func List() ([]Info, error) {
	mediadevicescamera.Initialize()
	drivers := driverutils.GetManager().Query(driverutils.FilterVideoRecorder())

	infos := make([]Info, 0, len(drivers))
	for i, d := range drivers {
		info := Info{
			Index:  i,
			Label:  driverLabel(d),
			Name:   d.Info().Name,
			Status: string(d.Status()),
		}
		if d.Status() == driverutils.StateRunning {
			infos = append(infos, info)
			continue
		}

		props, err := driverModes(d)
		if err != nil {
			infos = append(infos, info)
			continue
		}
		for _, p := range props {
			info.Modes = append(info.Modes, Mode{
				Width:     p.Video.Width,
				Height:    p.Video.Height,
				FrameRate: p.Video.FrameRate,
				Format:    string(p.Video.FrameFormat),
			})
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// driverModes opens a closed driver just long enough to read its
// advertised formats.
func driverModes(d driverutils.Driver) (_ []prop.Media, err error) {
	if d.Status() == driverutils.StateClosed {
		if err := d.Open(); err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := d.Close(); closeErr != nil {
				err = closeErr
			}
		}()
	}
	return d.Properties(), err
}
