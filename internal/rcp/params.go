package rcp

import "fmt"

// Parameter identifiers understood by the bridge.
const (
	ParamISO                  = "ISO"
	ParamColorTemperature     = "COLOR_TEMPERATURE"
	ParamSensorFrameRate      = "SENSOR_FRAME_RATE"
	ParamRecordState          = "RECORD_STATE"
	ParamExposureDisplay      = "EXPOSURE_DISPLAY"
	ParamRecordFormat         = "RECORD_FORMAT"
	ParamTint                 = "TINT"
	ParamMonitorFrequencySDI  = "MONITOR_FREQUENCY_SDI"
	ParamMonitorFrequencySDI2 = "MONITOR_FREQUENCY_SDI_2"
	ParamAperture             = "APERTURE"
	ParamClipDuration         = "CLIP_DURATION"
	ParamExposureAdjust       = "EXPOSURE_ADJUST"
	ParamAppliedLUT           = "APPLIED_CAMERA_LUT"
	ParamAppliedLUTSDI1       = "APPLIED_CAMERA_LUT_SDI_1"
	ParamAppliedLUTSDI2       = "APPLIED_CAMERA_LUT_SDI_2"
	ParamAppliedLUTTopLCD     = "APPLIED_CAMERA_LUT_DSI_1"
	ParamRecordCodec          = "RECORD_CODEC"
	ParamCameraID             = "CAMERA_ID"
	ParamCameraPIN            = "CAMERA_PIN"
	ParamReelNumber           = "REEL_NUMBER"
	ParamCameraPosition       = "CAMERA_POSITION"
	ParamMediaMinutes         = "MEDIA_MINUTES"
	ParamMediaCapacity        = "MEDIA_CAPACITY"
	ParamMediaFree            = "MEDIA_FREE"
	ParamMediaUsed            = "MEDIA_USED"
	ParamCameraInfo           = "CAMERA_INFO"
	ParamTimecode             = "TIMECODE"
	ParamTimecodeDisplay      = "TIMECODE_DISPLAY"
	ParamClipName             = "CLIP_NAME"
	ParamClipCount            = "CLIP_COUNT"
	ParamEnableLUTSDI1        = "ENABLE_CAMERA_LUT_SDI_1"
	ParamEnableLUTSDI2        = "ENABLE_CAMERA_LUT_SDI_2"
	ParamShutdown             = "SHUTDOWN"
)

var trackedParameters = []string{
	ParamISO,
	ParamColorTemperature,
	ParamSensorFrameRate,
	ParamRecordState,
	ParamExposureDisplay,
	ParamRecordFormat,
	ParamTint,
	ParamMonitorFrequencySDI,
	ParamMonitorFrequencySDI2,
	ParamAperture,
	ParamClipDuration,
	ParamExposureAdjust,
	ParamAppliedLUT,
	ParamAppliedLUTSDI1,
	ParamAppliedLUTSDI2,
	ParamAppliedLUTTopLCD,
	ParamRecordCodec,
	ParamCameraID,
	ParamCameraPIN,
	ParamReelNumber,
	ParamCameraPosition,
	ParamMediaMinutes,
	ParamMediaCapacity,
	ParamMediaFree,
	ParamMediaUsed,
	ParamCameraInfo,
	ParamTimecode,
	ParamTimecodeDisplay,
	ParamClipName,
	ParamClipCount,
	ParamEnableLUTSDI1,
	ParamEnableLUTSDI2,
}

// TrackedParameters returns the identifiers requested on every poll round.
func TrackedParameters() []string {
	out := make([]string, len(trackedParameters))
	copy(out, trackedParameters)

	return out
}

// Record format codes reported by RECORD_FORMAT.
var recordFormats = map[int64]string{
	0:  "6K 16:9",   // 6K FF
	1:  "5K 16:9",   // 5K FF
	2:  "4K 16:9",   // 4K FF
	3:  "6K 16:9",   // 6K HD
	4:  "2K 16:9",   // 2K FF
	5:  "6K 2.39:1", // 6K WS
	6:  "8K 16:9",   // 8K FF
	7:  "8K 16:9",   // 8K HD
	8:  "8K 21:9",   // 8K 2:1
	9:  "8K 2.39:1", // 8K WS
	10: "7K 16:9",   // 7K FF
	11: "7K 16:9",   // 7K HD
	12: "7K 21:9",   // 7K 2:1
	13: "7K 2.39:1", // 7K WS
	14: "6K 21:9",   // 6K 2:1
}

var recordCodecs = map[int64]string{
	0: "R3D",
	1: "ProRes",
}

// RecordFormatLabel maps a RECORD_FORMAT code to its label.
func RecordFormatLabel(code int64) string {
	return lookupLabel(recordFormats, code)
}

// RecordCodecLabel maps a RECORD_CODEC code to its label.
func RecordCodecLabel(code int64) string {
	return lookupLabel(recordCodecs, code)
}

func lookupLabel(table map[int64]string, code int64) string {
	if label, ok := table[code]; ok {
		return label
	}

	return UnknownLabel(FormatNumber(float64(code)))
}

// UnknownLabel renders a code that has no entry in a lookup table.
func UnknownLabel(code string) string {
	return fmt.Sprintf("Unknown (%s)", code)
}
