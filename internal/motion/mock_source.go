// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"math"
	"time"
)

const standardGravity = 9.80665

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock accelerometer that reports a device lying
// flat and gently rocking.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return Axes(
		0.4*math.Sin(elapsed),
		0.3*math.Cos(elapsed*0.7),
		standardGravity+0.05*math.Sin(elapsed*3),
	), nil
}
