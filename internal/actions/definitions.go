package actions

import (
	"fmt"
	"strconv"
)

// Action identifiers.
const (
	IncreaseExposureAdjust = "increase_exposure_adjust"
	DecreaseExposureAdjust = "decrease_exposure_adjust"
	SetExposureAdjust      = "set_exposure_adjust"
	SetWhiteBalance        = "set_white_balance"
	SetISO                 = "set_iso"
	SetSensorFPS           = "set_sensor_fps"
	SetRecordFormat        = "set_record_format"
	StartRecord            = "start_record"
	StopRecord             = "stop_record"
	ToggleRecord           = "toggle_record"
	ShutdownCamera         = "shutdown_camera"
	SendCommand            = "send_command"
	SetCameraID            = "set_camera_id"
	SetReelNumber          = "set_reel_number"
	SetCameraPosition      = "set_camera_position"
	ToggleLUTSDI1          = "toggle_lut_sdi1"
	ToggleLUTSDI2          = "toggle_lut_sdi2"
	EnableLUTSDI1          = "enable_lut_sdi1"
	DisableLUTSDI1         = "disable_lut_sdi1"
	EnableLUTSDI2          = "enable_lut_sdi2"
	DisableLUTSDI2         = "disable_lut_sdi2"
)

type OptionType string

const (
	OptionDropdown  OptionType = "dropdown"
	OptionNumber    OptionType = "number"
	OptionCheckbox  OptionType = "checkbox"
	OptionTextInput OptionType = "textinput"
)

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Option describes one input of an action as the host should render it.
type Option struct {
	Type         OptionType `json:"type"`
	ID           string     `json:"id"`
	Label        string     `json:"label"`
	Default      any        `json:"default"`
	Min          *float64   `json:"min,omitempty"`
	Max          *float64   `json:"max,omitempty"`
	Step         *float64   `json:"step,omitempty"`
	Choices      []Choice   `json:"choices,omitempty"`
	UseVariables bool       `json:"useVariables,omitempty"`
	Regex        string     `json:"regex,omitempty"`
}

type Definition struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

func exposureOption(id, label string, def float64) Option {
	return Option{
		Type:    OptionNumber,
		ID:      id,
		Label:   label,
		Default: def,
		Min:     float64Ptr(-maxExposureStops),
		Max:     float64Ptr(maxExposureStops),
		Step:    float64Ptr(0.001),
	}
}

func whiteBalanceChoices() []Choice {
	choices := make([]Choice, 0, 81)
	for kelvin := 2000; kelvin <= 10000; kelvin += 100 {
		choices = append(choices, Choice{ID: strconv.Itoa(kelvin), Label: fmt.Sprintf("%dK", kelvin)})
	}

	return choices
}

func isoChoices() []Choice {
	values := []string{"200", "250", "320", "400", "500", "640", "800", "1000", "1280", "1600", "2000", "2560", "3200", "4000", "5120", "6400"}
	choices := make([]Choice, 0, len(values))
	for _, v := range values {
		choices = append(choices, Choice{ID: v, Label: v})
	}

	return choices
}

var sensorFPSChoices = []Choice{
	{ID: "23976", Label: "23.976 FPS"},
	{ID: "24000", Label: "24 FPS"},
	{ID: "25000", Label: "25 FPS"},
	{ID: "29970", Label: "29.97 FPS"},
	{ID: "30000", Label: "30 FPS"},
	{ID: "48000", Label: "48 FPS"},
	{ID: "50000", Label: "50 FPS"},
	{ID: "59940", Label: "59.94 FPS"},
	{ID: "60000", Label: "60 FPS"},
	{ID: "120000", Label: "120 FPS"},
}

var recordFormatChoices = []Choice{
	{ID: "6", Label: "8K 16:9 (Full Frame)"},
	{ID: "7", Label: "8K 16:9 (HD)"},
	{ID: "8", Label: "8K 21:9"},
	{ID: "9", Label: "8K 2.39:1"},
	{ID: "10", Label: "7K 16:9 (Full Frame)"},
	{ID: "11", Label: "7K 16:9 (HD)"},
	{ID: "12", Label: "7K 21:9"},
	{ID: "13", Label: "7K 2.39:1"},
	{ID: "0", Label: "6K 16:9 (Full Frame)"},
	{ID: "3", Label: "6K 16:9 (HD)"},
	{ID: "5", Label: "6K 2.39:1"},
	{ID: "14", Label: "6K 21:9"},
	{ID: "1", Label: "5K 16:9"},
	{ID: "2", Label: "4K 16:9"},
	{ID: "4", Label: "2K 16:9"},
}

func positionChoices() []Choice {
	choices := make([]Choice, 0, 26)
	for i := 0; i < 26; i++ {
		choices = append(choices, Choice{ID: strconv.Itoa(i), Label: string(rune('A' + i))})
	}

	return choices
}

func float64Ptr(v float64) *float64 {
	return &v
}
