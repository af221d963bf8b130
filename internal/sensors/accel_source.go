// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_recorder/internal/motion"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Accelerometer sensitivity in LSB per g for ACCEL_FS_SEL 0..3.
var accelLSBPerG = [4]float64{16384, 8192, 4096, 2048}

// accelReader is the subset of the MPU9250 driver used for sampling.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

type accelSource struct {
	dev     accelReader
	lsbPerG float64
}

// NewAccelSource initializes an MPU9250 over SPI and returns a motion.Source
// reporting acceleration in m/s². accelRange is the full scale selector
// (0=±2g, 1=±4g, 2=±8g, 3=±16g).
func NewAccelSource(spiDev, csPin string, accelRange byte) (motion.Source, error) {
	if accelRange > 3 {
		return nil, fmt.Errorf("accel range %d out of bounds (0-3)", accelRange)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", accelRange, []int{2, 4, 8, 16}[accelRange])

	if err := imu.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}

	return newAccelSource(imu, accelRange), nil
}

func newAccelSource(dev accelReader, accelRange byte) *accelSource {
	return &accelSource{
		dev:     dev,
		lsbPerG: accelLSBPerG[accelRange&3],
	}
}

// Next reads one accelerometer sample.
func (s *accelSource) Next() (motion.Sample, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	return motion.Axes(s.toMPS2(ax), s.toMPS2(ay), s.toMPS2(az)), nil
}

func (s *accelSource) toMPS2(raw int16) float64 {
	return float64(raw) / s.lsbPerG * StandardGravity
}
