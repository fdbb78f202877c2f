package rcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	TypeConfig = "rcp_config"
	TypeGet    = "rcp_get"
	TypeSet    = "rcp_set"

	currentValuePrefix = "rcp_cur"

	TypeCurrentInt     = "rcp_cur_int"
	TypeCurrentStr     = "rcp_cur_str"
	TypeCurrentCamInfo = "rcp_cur_cam_info"
)

var ErrMalformedFrame = errors.New("malformed rcp frame")

// Cur holds the current raw value of a parameter.
type Cur struct {
	Val Value `json:"val"`
}

// Display holds the camera's human readable rendering of a parameter.
type Display struct {
	Str string `json:"str"`
}

// EditInfo describes how a raw integer maps to the displayed decimal.
type EditInfo struct {
	Divider *float64 `json:"divider,omitempty"`
	Digits  *float64 `json:"digits,omitempty"`
}

// Frame is one inbound JSON message. Every field except Type is optional.
type Frame struct {
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	Cur          *Cur      `json:"cur,omitempty"`
	Val          Value     `json:"val"`
	Display      *Display  `json:"display,omitempty"`
	EditInfo     *EditInfo `json:"edit_info,omitempty"`
	Name         string    `json:"name,omitempty"`
	SerialNumber string    `json:"serial_number,omitempty"`
	CameraType   *Display  `json:"camera_type,omitempty"`
	Version      *Display  `json:"version,omitempty"`
}

// Decode parses a text frame received from the camera.
func Decode(payload []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return frame, nil
}

// IsCurrentValue reports whether a frame type carries a current parameter value.
func IsCurrentValue(frameType string) bool {
	return strings.HasPrefix(frameType, currentValuePrefix)
}

// CurrentValue returns cur.val, or an absent Value when the frame has no cur object.
func (f Frame) CurrentValue() Value {
	if f.Cur == nil {
		return Value{}
	}

	return f.Cur.Val
}

// DisplayString returns display.str, empty when absent.
func (f Frame) DisplayString() string {
	if f.Display == nil {
		return ""
	}

	return f.Display.Str
}

// HasDisplay reports whether a display object was sent, even with an empty string.
func (f Frame) HasDisplay() bool {
	return f.Display != nil
}
