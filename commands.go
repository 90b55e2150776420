package mhz19b

import (
	"fmt"

	"go.uber.org/zap"
)

// CalibrateSpanMin is the lowest span point the sensor accepts.
const CalibrateSpanMin = 1000

// Detection ranges supported by the convenience setters.
const (
	Range2000 = 2000
	Range5000 = 5000
)

// GasConcentration reads the current CO2 concentration.
func (d *Driver) GasConcentration() (PPM, error) {
	if err := d.write(frameGasConcentration); err != nil {
		return 0, err
	}
	resp, err := d.read(FrameSize)
	if err != nil {
		return 0, err
	}
	return DecodeConcentration(resp, d.decoding)
}

// CalibrateZeroPoint sets the sensor's zero point to 400 ppm. The sensor
// should have been in fresh air for at least 20 minutes.
func (d *Driver) CalibrateZeroPoint() error {
	if err := d.write(frameCalibrateZero); err != nil {
		return err
	}
	d.log.Info("set the calibration zero point to 400 ppm")
	return nil
}

// CalibrateSpanPoint calibrates the span to point ppm. Values below
// CalibrateSpanMin are raised to CalibrateSpanMin.
func (d *Driver) CalibrateSpanPoint(point int) error {
	if point < CalibrateSpanMin {
		d.log.Info("span needs a minimum point, raising it",
			zap.Int("requested", point), zap.Int("point", CalibrateSpanMin))
		point = CalibrateSpanMin
	}
	if point > 0xffff {
		return fmt.Errorf("%w: span point %d", ErrOutOfRange, point)
	}
	if err := d.write(newWordFrame(cmdCalibrateSpan, uint16(point))); err != nil {
		return err
	}
	d.log.Info("set the calibration span point", zap.Int("ppm", point))
	return nil
}

// SetAutoCalibration turns the sensor's automatic baseline correction on or off.
func (d *Driver) SetAutoCalibration(enabled bool) error {
	var arg byte
	if enabled {
		arg = autoCalibrationOnArg
	}
	if err := d.write(NewFrame(cmdAutoCalibration, arg, 0, 0, 0, 0)); err != nil {
		return err
	}
	d.log.Info("set auto calibration", zap.Bool("enabled", enabled))
	return nil
}

// SetDetectionRange sets the maximum concentration the sensor reports.
func (d *Driver) SetDetectionRange(ppm int) error {
	if ppm < 0 || ppm > 0xffff {
		return fmt.Errorf("%w: detection range %d", ErrOutOfRange, ppm)
	}
	if err := d.write(newWordFrame(cmdDetectionRange, uint16(ppm))); err != nil {
		return err
	}
	d.log.Info("set the detection range", zap.Int("ppm", ppm))
	return nil
}

// SetDetectionRange2000 sets the detection range to 0-2000 ppm.
func (d *Driver) SetDetectionRange2000() error {
	return d.SetDetectionRange(Range2000)
}

// SetDetectionRange5000 sets the detection range to 0-5000 ppm.
func (d *Driver) SetDetectionRange5000() error {
	return d.SetDetectionRange(Range5000)
}
