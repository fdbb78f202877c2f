package telemetry

import "sort"

// Variable names published to the host.
const (
	VarISO                 = "iso"
	VarWhiteBalance        = "white_balance"
	VarFPS                 = "fps"
	VarRecording           = "recording"
	VarShutter             = "shutter"
	VarRecordFormat        = "record_format"
	VarTint                = "tint"
	VarSDIFrequency        = "sdi_freq"
	VarSDI2Frequency       = "sdi2_freq"
	VarAperture            = "aperture"
	VarRecordDuration      = "record_duration"
	VarExposureAdjust      = "exposure_adjust"
	VarLUTProject          = "lut_project"
	VarLUTTopLCD           = "lut_top_lcd"
	VarLUTSDI1             = "lut_sdi1"
	VarLUTSDI2             = "lut_sdi2"
	VarRecordCodec         = "record_codec"
	VarCameraID            = "camera_id"
	VarCameraPIN           = "camera_pin"
	VarClipName            = "clip_name"
	VarReelNumber          = "reel_number"
	VarCameraPosition      = "camera_position"
	VarMediaRemainingMin   = "media_remaining_min"
	VarMediaRemainingTime  = "media_remaining_time"
	VarMediaCapacityMin    = "media_capacity_min"
	VarMediaFreeSpace      = "media_free_space"
	VarMediaUsedSpace      = "media_used_space"
	VarCameraName          = "camera_name"
	VarCameraType          = "camera_type"
	VarFirmwareVersion     = "firmware_version"
	VarSerialNumber        = "serial_number"
	VarTimecode            = "timecode"
	VarTimecodeDisplayMode = "timecode_display_mode"
	VarTotalClips          = "total_clips"
	VarLUTSDI1Enabled      = "lut_sdi1_enabled"
	VarLUTSDI2Enabled      = "lut_sdi2_enabled"
)

// Definition declares one host variable.
type Definition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var definitions = []Definition{
	{ID: VarISO, Name: "ISO"},
	{ID: VarWhiteBalance, Name: "White Balance"},
	{ID: VarFPS, Name: "Sensor Frame Rate"},
	{ID: VarRecording, Name: "Recording State"},
	{ID: VarShutter, Name: "Shutter"},
	{ID: VarRecordFormat, Name: "Record Format"},
	{ID: VarTint, Name: "Tint"},
	{ID: VarSDIFrequency, Name: "SDI Output Frequency"},
	{ID: VarSDI2Frequency, Name: "SDI 2 Output Frequency"},
	{ID: VarAperture, Name: "Iris Aperture"},
	{ID: VarRecordDuration, Name: "Recording Duration"},
	{ID: VarExposureAdjust, Name: "Exposure Adjust"},
	{ID: VarLUTProject, Name: "Current Project/Camera LUT"},
	{ID: VarLUTTopLCD, Name: "Top LCD LUT"},
	{ID: VarLUTSDI1, Name: "Current LUT on SDI 1 Output"},
	{ID: VarLUTSDI2, Name: "Current LUT on SDI 2 Output"},
	{ID: VarRecordCodec, Name: "Recording Codec"},
	{ID: VarCameraID, Name: "Camera ID"},
	{ID: VarCameraPIN, Name: "Camera PIN"},
	{ID: VarClipName, Name: "Next Clip Name"},
	{ID: VarReelNumber, Name: "Reel Number"},
	{ID: VarCameraPosition, Name: "Camera Position (A-Z)"},
	{ID: VarMediaRemainingMin, Name: "Media Remaining (Minutes)"},
	{ID: VarMediaRemainingTime, Name: "Media Remaining (HH:MM:SS)"},
	{ID: VarMediaCapacityMin, Name: "Media Total Capacity (Minutes)"},
	{ID: VarMediaFreeSpace, Name: "Media Free Space"},
	{ID: VarMediaUsedSpace, Name: "Media Used Space"},
	{ID: VarCameraName, Name: "Camera Name"},
	{ID: VarCameraType, Name: "Camera Type"},
	{ID: VarFirmwareVersion, Name: "Firmware Version"},
	{ID: VarSerialNumber, Name: "Serial Number"},
	{ID: VarTimecode, Name: "Current Timecode"},
	{ID: VarTimecodeDisplayMode, Name: "Timecode Display Mode"},
	{ID: VarTotalClips, Name: "Total Clips on Media"},
	{ID: VarLUTSDI1Enabled, Name: "SDI 1 LUT Enabled (On/Off)"},
	{ID: VarLUTSDI2Enabled, Name: "SDI 2 LUT Enabled (On/Off)"},
}

// Definitions returns the declared variables in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)

	return out
}

// Variables is the fixed-key store written by the translator. Keys are declared once;
// writes to undeclared keys are ignored so the key set never changes.
type Variables struct {
	values map[string]string
}

func NewVariables() *Variables {
	v := &Variables{values: make(map[string]string, len(definitions))}
	for _, def := range definitions {
		v.values[def.ID] = ""
	}

	return v
}

// Set stores a value for a declared key and reports whether the key exists.
func (v *Variables) Set(key, value string) bool {
	if _, ok := v.values[key]; !ok {
		return false
	}
	v.values[key] = value

	return true
}

func (v *Variables) Get(key string) (string, bool) {
	value, ok := v.values[key]

	return value, ok
}

// Reset blanks every key.
func (v *Variables) Reset() {
	for key := range v.values {
		v.values[key] = ""
	}
}

// Snapshot copies the current values.
func (v *Variables) Snapshot() map[string]string {
	out := make(map[string]string, len(v.values))
	for key, value := range v.values {
		out[key] = value
	}

	return out
}

// Keys returns the declared keys sorted by name.
func (v *Variables) Keys() []string {
	out := make([]string, 0, len(v.values))
	for key := range v.values {
		out = append(out, key)
	}
	sort.Strings(out)

	return out
}
