package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skobkin/rcp2bridge/internal/rcp"
)

// rule writes the variables owned by one parameter id. Every rule decides the final value
// of its variables for the frame, including an explicit blank when the frame is unusable.
type rule func(frame rcp.Frame, session *Session, vars *Variables)

var rules = map[string]rule{
	rcp.ParamISO:                  applyISO,
	rcp.ParamColorTemperature:     applyColorTemperature,
	rcp.ParamSensorFrameRate:      applySensorFrameRate,
	rcp.ParamRecordState:          applyRecordState,
	rcp.ParamExposureDisplay:      applyExposureDisplay,
	rcp.ParamExposureAdjust:       applyExposureAdjust,
	rcp.ParamRecordFormat:         applyRecordFormat,
	rcp.ParamTint:                 displayOrRaw(VarTint),
	rcp.ParamMonitorFrequencySDI:  frequency(VarSDIFrequency),
	rcp.ParamMonitorFrequencySDI2: frequency(VarSDI2Frequency),
	rcp.ParamAppliedLUTTopLCD:     lutName(VarLUTTopLCD),
	rcp.ParamAppliedLUT:           lutName(VarLUTProject),
	rcp.ParamAppliedLUTSDI1:       outputLUTName(VarLUTSDI1, LUTOutputSDI1),
	rcp.ParamAppliedLUTSDI2:       outputLUTName(VarLUTSDI2, LUTOutputSDI2),
	rcp.ParamAperture:             applyAperture,
	rcp.ParamClipDuration:         displayOnly(VarRecordDuration),
	rcp.ParamRecordCodec:          applyRecordCodec,
	rcp.ParamCameraID:             displayOrRaw(VarCameraID),
	rcp.ParamCameraPIN:            displayOrRaw(VarCameraPIN),
	rcp.ParamReelNumber:           displayOrRaw(VarReelNumber),
	rcp.ParamCameraPosition:       applyCameraPosition,
	rcp.ParamMediaMinutes:         applyMediaMinutes,
	rcp.ParamMediaCapacity:        displayOrRaw(VarMediaCapacityMin),
	rcp.ParamMediaFree:            displayOrRaw(VarMediaFreeSpace),
	rcp.ParamMediaUsed:            displayOrRaw(VarMediaUsedSpace),
	rcp.ParamClipName:             displayOrRaw(VarClipName),
	rcp.ParamClipCount:            applyClipCount,
	rcp.ParamTimecode:             displayOrRaw(VarTimecode),
	rcp.ParamTimecodeDisplay:      displayOnly(VarTimecodeDisplayMode),
	rcp.ParamCameraInfo:           applyCameraInfo,
	rcp.ParamEnableLUTSDI1:        lutEnabled(VarLUTSDI1Enabled, LUTOutputSDI1),
	rcp.ParamEnableLUTSDI2:        lutEnabled(VarLUTSDI2Enabled, LUTOutputSDI2),
}

func applyISO(frame rcp.Frame, _ *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Integer(); ok {
		vars.Set(VarISO, strconv.FormatInt(n, 10))

		return
	}
	vars.Set(VarISO, "")
}

func applyColorTemperature(frame rcp.Frame, _ *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Integer(); ok {
		vars.Set(VarWhiteBalance, strconv.FormatInt(n, 10)+"k")

		return
	}
	if display := frame.DisplayString(); display != "" {
		vars.Set(VarWhiteBalance, kelvinSuffix.ReplaceAllString(display, "")+"k")

		return
	}
	vars.Set(VarWhiteBalance, "")
}

// Integer frame rate frames are ignored; only the decoded string form carries the
// fractional rate the camera shows.
func applySensorFrameRate(frame rcp.Frame, _ *Session, vars *Variables) {
	display := frame.DisplayString()
	if frame.Type != rcp.TypeCurrentStr || display == "" {
		return
	}
	vars.Set(VarFPS, fpsSuffix.ReplaceAllString(display, ""))
}

func applyRecordState(frame rcp.Frame, _ *Session, vars *Variables) {
	recording := frame.CurrentValue().Truthy()
	if n, ok := frame.Val.Number(); ok && n == 1 {
		recording = true
	}
	if recording {
		vars.Set(VarRecording, "Recording")

		return
	}
	vars.Set(VarRecording, "Idle")
}

func applyExposureDisplay(frame rcp.Frame, _ *Session, vars *Variables) {
	if display := frame.DisplayString(); display != "" {
		vars.Set(VarShutter, display)

		return
	}
	cur := frame.CurrentValue()
	if n, ok := numeric(cur); ok && cur.Truthy() {
		vars.Set(VarShutter, "1/"+formatFixed(n/1000, 2))

		return
	}
	vars.Set(VarShutter, "")
}

// Exposure adjust arrives in thousandths of a stop; the raw value is kept as the base
// for relative adjustments.
func applyExposureAdjust(frame rcp.Frame, session *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Number(); ok {
		session.ExposureAdjust = int64(jsRound(n))
		vars.Set(VarExposureAdjust, formatFixed(n/1000, 3))

		return
	}
	if display := frame.DisplayString(); display != "" {
		vars.Set(VarExposureAdjust, display)
	}
}

func applyRecordFormat(frame rcp.Frame, _ *Session, vars *Variables) {
	cur := frame.CurrentValue()
	if frame.Type != rcp.TypeCurrentInt || !cur.Present() {
		return
	}
	if code, ok := cur.Integer(); ok {
		vars.Set(VarRecordFormat, rcp.RecordFormatLabel(code))

		return
	}
	vars.Set(VarRecordFormat, rcp.UnknownLabel(cur.String()))
}

func applyRecordCodec(frame rcp.Frame, _ *Session, vars *Variables) {
	if code, ok := frame.CurrentValue().Integer(); ok {
		vars.Set(VarRecordCodec, rcp.RecordCodecLabel(code))

		return
	}
	vars.Set(VarRecordCodec, frame.DisplayString())
}

func applyAperture(frame rcp.Frame, session *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Number(); ok && n >= 0 {
		divider, digits := 1.0, 1.0
		if frame.EditInfo != nil {
			if frame.EditInfo.Divider != nil && *frame.EditInfo.Divider > 0 {
				divider = *frame.EditInfo.Divider
			}
			if frame.EditInfo.Digits != nil {
				digits = *frame.EditInfo.Digits
			}
		}
		session.LastAperture = formatFixed(n/divider, int(digits))
		vars.Set(VarAperture, session.LastAperture)

		return
	}

	if frame.HasDisplay() {
		text := strings.TrimSpace(frame.DisplayString())
		if v, ok := parseTStop(text); ok {
			session.LastAperture = formatFixed(v, 1)
		} else if v, ok := ParseLeadingFloat(text); ok {
			session.LastAperture = formatFixed(v, 1)
		}
	}
	vars.Set(VarAperture, session.aperture())
}

func applyCameraPosition(frame rcp.Frame, _ *Session, vars *Variables) {
	if display := frame.DisplayString(); display != "" {
		vars.Set(VarCameraPosition, display)

		return
	}
	cur := frame.CurrentValue()
	if n, ok := cur.Number(); ok && n >= 0 && n <= 25 {
		vars.Set(VarCameraPosition, string(rune('A'+int(n))))

		return
	}
	vars.Set(VarCameraPosition, cur.String())
}

func applyMediaMinutes(frame rcp.Frame, _ *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Number(); ok {
		vars.Set(VarMediaRemainingMin, rcp.FormatNumber(n))
		vars.Set(VarMediaRemainingTime, minutesToClock(n))

		return
	}
	if display := frame.DisplayString(); display != "" {
		vars.Set(VarMediaRemainingMin, display)
		clock := minutesToClock(-1)
		if minutes, ok := ParseLeadingInt(display); ok {
			clock = minutesToClock(float64(minutes))
		}
		vars.Set(VarMediaRemainingTime, clock)

		return
	}
	vars.Set(VarMediaRemainingMin, "")
	vars.Set(VarMediaRemainingTime, "")
}

func applyClipCount(frame rcp.Frame, _ *Session, vars *Variables) {
	if n, ok := frame.CurrentValue().Number(); ok {
		vars.Set(VarTotalClips, rcp.FormatNumber(n))

		return
	}
	vars.Set(VarTotalClips, frame.DisplayString())
}

// CAMERA_INFO only fills the fields present in the frame.
func applyCameraInfo(frame rcp.Frame, _ *Session, vars *Variables) {
	if frame.Name != "" {
		vars.Set(VarCameraName, frame.Name)
	}
	if frame.SerialNumber != "" {
		vars.Set(VarSerialNumber, frame.SerialNumber)
	}
	if frame.CameraType != nil && frame.CameraType.Str != "" {
		vars.Set(VarCameraType, frame.CameraType.Str)
	}
	if frame.Version != nil && frame.Version.Str != "" {
		vars.Set(VarFirmwareVersion, frame.Version.Str)
	}
}

func displayOnly(key string) rule {
	return func(frame rcp.Frame, _ *Session, vars *Variables) {
		vars.Set(key, frame.DisplayString())
	}
}

func displayOrRaw(key string) rule {
	return func(frame rcp.Frame, _ *Session, vars *Variables) {
		if display := frame.DisplayString(); display != "" {
			vars.Set(key, display)

			return
		}
		vars.Set(key, frame.CurrentValue().String())
	}
}

func frequency(key string) rule {
	return func(frame rcp.Frame, _ *Session, vars *Variables) {
		if display := frame.DisplayString(); display != "" {
			vars.Set(key, hertzSuffix.ReplaceAllString(display, "")+" Hz")

			return
		}
		if cur := frame.CurrentValue(); cur.Present() {
			vars.Set(key, cur.String()+" Hz")

			return
		}
		vars.Set(key, "")
	}
}

func lutName(key string) rule {
	return func(frame rcp.Frame, _ *Session, vars *Variables) {
		vars.Set(key, stripCube(selectedLUT(frame)))
	}
}

func outputLUTName(key string, output LUTOutput) rule {
	return func(frame rcp.Frame, _ *Session, vars *Variables) {
		name := selectedLUT(frame)
		if name == "" {
			vars.Set(key, fmt.Sprintf("NO LUT on SDI #%d", output))

			return
		}
		vars.Set(key, stripCube(name))
	}
}

func lutEnabled(key string, output LUTOutput) rule {
	return func(frame rcp.Frame, session *Session, vars *Variables) {
		var enabled bool
		if n, ok := frame.CurrentValue().Number(); ok {
			enabled = n == 1
		} else if display := frame.DisplayString(); display != "" {
			enabled = strings.EqualFold(display, "on") || display == "1"
		} else {
			vars.Set(key, "")

			return
		}
		session.setLUTEnabled(output, enabled)
		vars.Set(key, onOff(enabled))
	}
}

func selectedLUT(frame rcp.Frame) string {
	if display := frame.DisplayString(); display != "" {
		return display
	}
	if cur := frame.CurrentValue(); cur.Truthy() {
		return cur.String()
	}

	return ""
}

// numeric accepts numbers and numeric strings.
func numeric(v rcp.Value) (float64, bool) {
	if n, ok := v.Number(); ok {
		return n, true
	}
	if s, ok := v.Text(); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)

		return n, err == nil
	}

	return 0, false
}
