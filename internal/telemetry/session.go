package telemetry

// LUTOutput selects one of the camera's SDI outputs.
type LUTOutput int

const (
	LUTOutputSDI1 LUTOutput = 1
	LUTOutputSDI2 LUTOutput = 2
)

const apertureUnknown = "N/A"

// Session keeps the values that outlive a single frame: the last aperture shown, the
// exposure adjust running total used by relative actions, and the LUT enable flags used
// by toggle actions. It survives reconnects; the camera refreshes it on the next poll.
type Session struct {
	LastAperture   string
	ExposureAdjust int64
	LUTSDI1Enabled bool
	LUTSDI2Enabled bool
}

// LUTEnabled returns the last known enable flag of an output.
func (s Session) LUTEnabled(output LUTOutput) bool {
	if output == LUTOutputSDI2 {
		return s.LUTSDI2Enabled
	}

	return s.LUTSDI1Enabled
}

func (s *Session) setLUTEnabled(output LUTOutput, enabled bool) {
	if output == LUTOutputSDI2 {
		s.LUTSDI2Enabled = enabled

		return
	}
	s.LUTSDI1Enabled = enabled
}

func (s *Session) aperture() string {
	if s.LastAperture == "" {
		return apertureUnknown
	}

	return s.LastAperture
}
