package actions

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/skobkin/rcp2bridge/internal/rcp"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
)

const (
	maxExposureStops = 8.0
	maxExposureRaw   = 8000
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidOption = errors.New("invalid action option")
)

// Commander sends commands to the camera.
type Commander interface {
	Set(id string, value any) error
	SendRaw(payload []byte) error
	Session() telemetry.Session
}

// Interpolator expands $(label:variable) references in option text.
type Interpolator interface {
	ParseVariablesInString(text string) string
}

// Options holds option values keyed by option id, as decoded from JSON.
type Options map[string]any

type handler func(inv invocation) error

type action struct {
	def Definition
	run handler
}

// Registry declares the camera actions and runs them against a Commander.
type Registry struct {
	logger    *slog.Logger
	commander Commander
	vars      Interpolator
	actions   map[string]action
	order     []string
}

func NewRegistry(logger *slog.Logger, commander Commander, vars Interpolator) *Registry {
	if logger == nil {
		logger = slog.With("component", "actions")
	}
	r := &Registry{
		logger:    logger,
		commander: commander,
		vars:      vars,
		actions:   make(map[string]action),
	}
	r.register()

	return r
}

// Definitions returns the declared actions in display order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.actions[id].def)
	}

	return out
}

// Run executes an action. Option values are interpolated before parsing; invalid input
// is reported as ErrInvalidOption and nothing is sent.
func (r *Registry) Run(id string, options Options) error {
	act, ok := r.actions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	err := act.run(invocation{registry: r, def: act.def, options: options})
	if err != nil {
		if errors.Is(err, ErrInvalidOption) {
			r.logger.Warn("action input rejected", "action", id, "error", err)
		} else {
			r.logger.Error("action failed", "action", id, "error", err)
		}

		return err
	}
	r.logger.Debug("action executed", "action", id)

	return nil
}

func (r *Registry) add(def Definition, run handler) {
	if _, exists := r.actions[def.ID]; !exists {
		r.order = append(r.order, def.ID)
	}
	r.actions[def.ID] = action{def: def, run: run}
}

func (r *Registry) register() {
	r.add(Definition{
		ID:      IncreaseExposureAdjust,
		Name:    "Increase Exposure Adjust",
		Options: []Option{exposureOption("amount", "Amount to increase (e.g. 0.250)", 0.25)},
	}, func(inv invocation) error {
		return inv.adjustExposure(1)
	})
	r.add(Definition{
		ID:      DecreaseExposureAdjust,
		Name:    "Decrease Exposure Adjust",
		Options: []Option{exposureOption("amount", "Amount to decrease (e.g. 0.250)", 0.25)},
	}, func(inv invocation) error {
		return inv.adjustExposure(-1)
	})
	r.add(Definition{
		ID:      SetExposureAdjust,
		Name:    "Set Exposure Adjust (Static)",
		Options: []Option{exposureOption("value", "Target Exposure Adjust Value", 0)},
	}, func(inv invocation) error {
		value, err := inv.number("value")
		if err != nil {
			return err
		}
		value = min(maxExposureStops, max(-maxExposureStops, value))

		return inv.set(rcp.ParamExposureAdjust, telemetry.FixedPoint(value))
	})

	r.add(Definition{
		ID:   SetWhiteBalance,
		Name: "Set White Balance",
		Options: []Option{{
			Type: OptionDropdown, ID: "white_balance", Label: "White Balance (Kelvin)", Default: "5600", Choices: whiteBalanceChoices(),
		}},
	}, func(inv invocation) error {
		return inv.setInt("white_balance", rcp.ParamColorTemperature, nil)
	})
	r.add(Definition{
		ID:      SetISO,
		Name:    "Set ISO",
		Options: []Option{{Type: OptionDropdown, ID: "iso", Label: "ISO", Default: "800", Choices: isoChoices()}},
	}, func(inv invocation) error {
		return inv.setInt("iso", rcp.ParamISO, nil)
	})
	r.add(Definition{
		ID:      SetSensorFPS,
		Name:    "Set Sensor Frame Rate",
		Options: []Option{{Type: OptionDropdown, ID: "fps", Label: "Sensor Frame Rate", Default: "24000", Choices: sensorFPSChoices}},
	}, func(inv invocation) error {
		return inv.setInt("fps", rcp.ParamSensorFrameRate, nil)
	})
	r.add(Definition{
		ID:      SetRecordFormat,
		Name:    "Set Record Format",
		Options: []Option{{Type: OptionDropdown, ID: "record_format", Label: "Record Format", Default: "6", Choices: recordFormatChoices}},
	}, func(inv invocation) error {
		return inv.setInt("record_format", rcp.ParamRecordFormat, nil)
	})

	r.add(Definition{ID: StartRecord, Name: "Start Recording", Options: []Option{}}, fixedSet(rcp.ParamRecordState, 1))
	r.add(Definition{ID: StopRecord, Name: "Stop Recording", Options: []Option{}}, fixedSet(rcp.ParamRecordState, 0))
	r.add(Definition{ID: ToggleRecord, Name: "Toggle Recording", Options: []Option{}}, fixedSet(rcp.ParamRecordState, 2))

	r.add(Definition{
		ID:   ShutdownCamera,
		Name: "Shutdown Camera",
		Options: []Option{{
			Type: OptionCheckbox, ID: "confirm", Label: "Confirm Shutdown (must be checked to proceed)", Default: false,
		}},
	}, func(inv invocation) error {
		if !inv.checked("confirm") {
			return fmt.Errorf("%w: shutdown not confirmed", ErrInvalidOption)
		}
		if err := inv.set(rcp.ParamShutdown, 1); err != nil {
			return err
		}
		inv.registry.logger.Info("shutdown command sent to camera")

		return nil
	})

	r.add(Definition{
		ID:      SendCommand,
		Name:    "Send Generic Command",
		Options: []Option{{Type: OptionTextInput, ID: "data", Label: "Data", Default: "", UseVariables: true}},
	}, func(inv invocation) error {
		if err := inv.registry.commander.SendRaw([]byte(inv.text("data"))); err != nil {
			return fmt.Errorf("send command: %w", err)
		}

		return nil
	})

	r.add(Definition{
		ID:   SetCameraID,
		Name: "Set Camera ID",
		Options: []Option{{
			Type: OptionTextInput, ID: "camera_id", Label: "Camera ID (alphanumeric, max 63 chars)", Default: "", UseVariables: true,
		}},
	}, func(inv invocation) error {
		id := inv.text("camera_id")
		if id == "" {
			return fmt.Errorf("%w: camera id is empty", ErrInvalidOption)
		}

		return inv.set(rcp.ParamCameraID, id)
	})
	r.add(Definition{
		ID:   SetReelNumber,
		Name: "Set Reel Number",
		Options: []Option{{
			Type: OptionNumber, ID: "reel", Label: "Reel Number (1-999)", Default: 1, Min: float64Ptr(1), Max: float64Ptr(999),
		}},
	}, func(inv invocation) error {
		return inv.setInt("reel", rcp.ParamReelNumber, &intRange{min: 1, max: 999})
	})
	r.add(Definition{
		ID:   SetCameraPosition,
		Name: "Set Camera Position",
		Options: []Option{{
			Type: OptionDropdown, ID: "position", Label: "Camera Position (Letter)", Default: "0", Choices: positionChoices(),
		}},
	}, func(inv invocation) error {
		return inv.setInt("position", rcp.ParamCameraPosition, &intRange{min: 0, max: 25})
	})

	r.add(Definition{ID: ToggleLUTSDI1, Name: "Toggle LUT on SDI 1", Options: []Option{}}, toggleLUT(telemetry.LUTOutputSDI1))
	r.add(Definition{ID: ToggleLUTSDI2, Name: "Toggle LUT on SDI 2", Options: []Option{}}, toggleLUT(telemetry.LUTOutputSDI2))
	r.add(Definition{ID: EnableLUTSDI1, Name: "Enable LUT on SDI 1", Options: []Option{}}, fixedSet(rcp.ParamEnableLUTSDI1, 1))
	r.add(Definition{ID: DisableLUTSDI1, Name: "Disable LUT on SDI 1", Options: []Option{}}, fixedSet(rcp.ParamEnableLUTSDI1, 0))
	r.add(Definition{ID: EnableLUTSDI2, Name: "Enable LUT on SDI 2", Options: []Option{}}, fixedSet(rcp.ParamEnableLUTSDI2, 1))
	r.add(Definition{ID: DisableLUTSDI2, Name: "Disable LUT on SDI 2", Options: []Option{}}, fixedSet(rcp.ParamEnableLUTSDI2, 0))
}

func fixedSet(id string, value int) handler {
	return func(inv invocation) error {
		return inv.set(id, value)
	}
}

func toggleLUT(output telemetry.LUTOutput) handler {
	param := rcp.ParamEnableLUTSDI1
	if output == telemetry.LUTOutputSDI2 {
		param = rcp.ParamEnableLUTSDI2
	}

	return func(inv invocation) error {
		next := 1
		if inv.registry.commander.Session().LUTEnabled(output) {
			next = 0
		}

		return inv.set(param, next)
	}
}

type intRange struct {
	min int64
	max int64
}

type invocation struct {
	registry *Registry
	def      Definition
	options  Options
}

// text returns the option value as text with variables expanded. Missing options fall
// back to the declared default.
func (inv invocation) text(id string) string {
	raw, ok := inv.options[id]
	if !ok || raw == nil {
		raw = inv.defaultValue(id)
	}

	var text string
	switch v := raw.(type) {
	case nil:
		text = ""
	case string:
		text = v
	case float64:
		text = rcp.FormatNumber(v)
	case int:
		text = strconv.Itoa(v)
	case bool:
		text = strconv.FormatBool(v)
	default:
		text = fmt.Sprint(v)
	}
	if inv.registry.vars != nil {
		text = inv.registry.vars.ParseVariablesInString(text)
	}

	return text
}

func (inv invocation) defaultValue(id string) any {
	for _, opt := range inv.def.Options {
		if opt.ID == id {
			return opt.Default
		}
	}

	return nil
}

func (inv invocation) number(id string) (float64, error) {
	text := inv.text(id)
	value, ok := telemetry.ParseLeadingFloat(text)
	if !ok {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidOption, id, text)
	}

	return value, nil
}

func (inv invocation) integer(id string) (int64, error) {
	text := inv.text(id)
	value, ok := telemetry.ParseLeadingInt(text)
	if !ok {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidOption, id, text)
	}

	return value, nil
}

func (inv invocation) checked(id string) bool {
	switch v := inv.options[id].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))

		return err == nil && parsed
	case float64:
		return v != 0
	default:
		return false
	}
}

func (inv invocation) setInt(optionID, param string, bounds *intRange) error {
	value, err := inv.integer(optionID)
	if err != nil {
		return err
	}
	if bounds != nil && (value < bounds.min || value > bounds.max) {
		return fmt.Errorf("%w: %s=%d is outside %d..%d", ErrInvalidOption, optionID, value, bounds.min, bounds.max)
	}

	return inv.set(param, value)
}

// adjustExposure moves exposure adjust relative to the last value the camera reported.
// The base only changes when the camera echoes the new value back.
func (inv invocation) adjustExposure(sign int64) error {
	delta, err := inv.number("amount")
	if err != nil {
		return err
	}
	next := inv.registry.commander.Session().ExposureAdjust + sign*telemetry.FixedPoint(delta)
	next = min(int64(maxExposureRaw), max(int64(-maxExposureRaw), next))

	return inv.set(rcp.ParamExposureAdjust, next)
}

func (inv invocation) set(id string, value any) error {
	if err := inv.registry.commander.Set(id, value); err != nil {
		return fmt.Errorf("set %s: %w", id, err)
	}
	inv.registry.logger.Debug("sending set", "id", id, "value", value)

	return nil
}
