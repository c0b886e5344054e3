package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decode errors.
var (
	ErrMissingFields = errors.New("response is missing required fields")
	ErrInvalidField  = errors.New("invalid field value")
)

type decoderFunc func(fields []string) (Response, error)

// decoders maps opcodes to their typed decoder.
var decoders = map[string]decoderFunc{
	StatusAliveOp:       decodeStatusAlive,
	StatusIDOp:          decodeStatusID,
	StatusPowerOp:       decodePowerState,
	AutoAspectQueryOp:   decodeAutoAspect,
	GameModeQueryOp:     decodeGameMode,
	OutputColorFormatOp: decodeOutputColorFormat,
	InputBasicInfoOp:    decodeInputBasicInfo,
	InputVideoOp:        decodeInputVideo,
	FullInfoV1Op:        fullInfoDecoder("V1"),
	FullInfoV2Op:        fullInfoDecoder("V2"),
	FullInfoV3Op:        fullInfoDecoder("V3"),
	FullInfoV4Op:        fullInfoDecoder("V4"),
	OutputBasicInfoOp:   decodeOutputBasicInfo,
	OutputModeOp:        decodeOutputMode,
	LabelQueryOp:        decodeLabelQuery,
}

// Decode turns a message name and its ordered fields into a typed,
// range-checked response. Unknown names yield a Generic response rather than
// an error.
func Decode(name string, fields []string) (Response, error) {
	decoder, ok := decoders[name]
	if !ok {
		return Generic{base{name: name, fields: fields}}, nil
	}

	resp, err := decoder(fields)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return resp, nil
}

// DecodeMessage parses a complete message and decodes it in one step.
func DecodeMessage(message string) (Response, error) {
	parsed := ParseMessage(message)
	if parsed.Name == "" {
		return nil, fmt.Errorf("%w: no opcode in %q", ErrInvalidField, message)
	}
	return Decode(parsed.Name, parsed.Fields)
}

func decodeStatusAlive(fields []string) (Response, error) {
	if len(fields) < 1 {
		return nil, ErrMissingFields
	}
	return StatusAlive{
		base:    base{name: StatusAliveOp, fields: fields},
		IsAlive: fields[0] == "Ok",
	}, nil
}

func decodeStatusID(fields []string) (Response, error) {
	r := StatusID{base: base{name: StatusIDOp, fields: fields}}
	if len(fields) > 0 {
		r.ModelName = strPtr(fields[0])
	}
	var err error
	if len(fields) > 1 {
		if r.SoftwareRevision, err = intPtr(fields[1]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 2 {
		if r.ModelNumber, err = intPtr(fields[2]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 3 {
		if r.SerialNumber, err = intPtr(fields[3]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var deviceStatusValues = map[string]DeviceStatus{
	"1":       DeviceActive,
	"0":       DeviceStandby,
	"Active":  DeviceActive,
	"Standby": DeviceStandby,
}

func decodePowerState(fields []string) (Response, error) {
	if len(fields) < 1 {
		return nil, ErrMissingFields
	}
	status, ok := deviceStatusValues[fields[0]]
	if !ok {
		return nil, fmt.Errorf("%w: device status %q", ErrInvalidField, fields[0])
	}
	return PowerState{base{name: StatusPowerOp, fields: fields}, status}, nil
}

var stateStatusValues = map[string]StateStatus{
	"1":        StateEnabled,
	"0":        StateDisabled,
	"Enabled":  StateEnabled,
	"Disabled": StateDisabled,
}

func decodeStateStatus(fields []string) (StateStatus, error) {
	if len(fields) < 1 {
		return "", ErrMissingFields
	}
	status, ok := stateStatusValues[fields[0]]
	if !ok {
		return "", fmt.Errorf("%w: state status %q", ErrInvalidField, fields[0])
	}
	return status, nil
}

func decodeAutoAspect(fields []string) (Response, error) {
	status, err := decodeStateStatus(fields)
	if err != nil {
		return nil, err
	}
	return AutoAspect{base{name: AutoAspectQueryOp, fields: fields}, status}, nil
}

func decodeGameMode(fields []string) (Response, error) {
	status, err := decodeStateStatus(fields)
	if err != nil {
		return nil, err
	}
	return GameMode{base{name: GameModeQueryOp, fields: fields}, status}, nil
}

var colorFormats = map[string]string{
	"0": ColorFormat422,
	"1": ColorFormat444,
	"2": ColorFormatRGBVideoLevel,
	"3": ColorFormatRGBPCLevel,
	"4": ColorFormat420,
}

func decodeOutputColorFormat(fields []string) (Response, error) {
	if len(fields) < 1 {
		return nil, ErrMissingFields
	}
	format, ok := colorFormats[fields[0]]
	if !ok {
		return nil, fmt.Errorf("%w: color format %q", ErrInvalidField, fields[0])
	}
	return OutputColorFormat{base{name: OutputColorFormatOp, fields: fields}, format}, nil
}

func decodeInputBasicInfo(fields []string) (Response, error) {
	r := InputBasicInfo{base: base{name: InputBasicInfoOp, fields: fields}}
	var err error
	if len(fields) > 0 {
		if r.LogicalInput, err = intPtr(fields[0]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 1 {
		r.InputMemory = strPtr(fields[1])
	}
	if len(fields) > 2 {
		if r.PhysicalInput, err = intPtr(fields[2]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var interlacedValues = map[string]string{"1": "Interlaced", "0": "Progressive"}

func decodeInputVideo(fields []string) (Response, error) {
	r := InputVideo{base: base{name: InputVideoOp, fields: fields}}
	var err error
	if len(fields) > 0 {
		if r.Status, err = inputStatusPtr(fields[0]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 1 {
		if r.VerticalRate, err = ratePtr(fields[1]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 2 {
		if r.HorizontalResolution, err = intPtr(fields[2]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 3 {
		if r.VerticalResolution, err = intPtr(fields[3]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 4 {
		v := fields[4]
		if mapped, ok := interlacedValues[v]; ok {
			v = mapped
		}
		r.Interlaced = &v
	}
	if len(fields) > 5 {
		if r.ThreeDType, err = frame3DPtr(fields[5]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func fullInfoDecoder(version string) decoderFunc {
	name := map[string]string{
		"V1": FullInfoV1Op, "V2": FullInfoV2Op, "V3": FullInfoV3Op, "V4": FullInfoV4Op,
	}[version]
	return func(fields []string) (Response, error) {
		return decodeFullInfo(name, version, fields)
	}
}

var (
	nlsValues          = map[string]string{"-": "Normal", "N": "NLS"}
	colorspaceValues   = map[string]int{"0": 601, "1": 709, "2": 2020, "3": 2100}
	dynamicRangeValues = map[string]string{"0": "SDR", "1": "HDR"}
	sourceModeValues   = map[string]string{"i": "Interlaced", "p": "Progressive", "n": "No Source"}
	outputModeValues   = map[string]string{"I": "Interlaced", "P": "Progressive"}
)

func decodeFullInfo(name, version string, fields []string) (Response, error) {
	r := FullInfo{base: base{name: name, fields: fields}, Version: version}

	var err error
	for i, f := range fields {
		switch i {
		case 0:
			r.InputStatus, err = inputStatusPtr(f)
		case 1:
			r.SourceVerticalRate, err = reportedRatePtr(f)
		case 2:
			r.SourceVerticalResolution, err = intPtr(f)
		case 3:
			r.Source3DMode, err = frame3DPtr(f)
		case 4:
			r.ActiveInputConfigNumber, err = intPtr(f)
		case 5:
			r.SourceRasterAspect, err = intPtr(f)
		case 6:
			r.SourceContentAspect, err = intPtr(f)
		case 7:
			if v, ok := nlsValues[f]; ok {
				r.NLSActive = &v
			}
		case 8:
			r.Output3DMode, err = frame3DPtr(f)
		case 9:
			r.OutputOn, err = decodeOutputOn(f)
		case 10:
			r.ActiveOutputCMS, err = intPtr(f)
		case 11:
			r.ActiveOutputStyle, err = intPtr(f)
		case 12:
			r.OutputVerticalRate, err = reportedRatePtr(f)
		case 13:
			r.OutputVerticalResolution, err = intPtr(f)
		case 14:
			r.OutputAspect, err = intPtr(f)
		case 15:
			cs, ok := colorspaceValues[f]
			if !ok {
				err = fmt.Errorf("%w: colorspace %q", ErrInvalidField, f)
				break
			}
			r.OutputColorspace = &cs
		case 16:
			if v, ok := dynamicRangeValues[f]; ok {
				r.SourceDynamicRange = &v
			}
		case 17:
			if v, ok := sourceModeValues[f]; ok {
				r.SourceMode = &v
			}
		case 18:
			if v, ok := outputModeValues[f]; ok {
				r.OutputMode = &v
			}
		case 19:
			r.VirtualInputSelected, err = intPtr(f)
		case 20:
			r.PhysicalInputSelected, err = intPtr(f)
		case 21:
			r.DetectedSourceRasterAspect, err = intPtr(f)
		case 22:
			r.DetectedSourceAspect, err = intPtr(f)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}
	return r, nil
}

// decodeOutputOn expands a hex nibble into per-output on/off states.
func decodeOutputOn(value string) (map[string]string, error) {
	n, err := strconv.ParseUint(value, 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: output_on %q", ErrInvalidField, value)
	}
	out := make(map[string]string, 4)
	for i := 0; i < 4; i++ {
		state := "Off"
		if n&(1<<i) != 0 {
			state = "On"
		}
		out[fmt.Sprintf("video_out%d", i+1)] = state
	}
	return out, nil
}

// pairStates maps a raw 0-3 output field to the on/off states of two ports.
var pairStates = map[string][2]string{
	"0": {"Off", "Off"},
	"1": {"On", "Off"},
	"2": {"Off", "On"},
	"3": {"On", "On"},
}

func decodeOutputBasicInfo(fields []string) (Response, error) {
	r := OutputBasicInfo{base: base{name: OutputBasicInfoOp, fields: fields}}
	var err error
	if len(fields) > 0 {
		if r.OutputConfig, err = intPtr(fields[0]); err != nil {
			return nil, err
		}
	}

	targets := [][2]**string{
		{&r.VideoOut1, &r.VideoOut2},
		{&r.VideoOut3, &r.VideoOut4},
		{&r.AudioOut1, &r.AudioOut2},
		{&r.AudioOut3, &r.AudioOut4},
	}
	for i, pair := range targets {
		if len(fields) <= i+1 {
			break
		}
		states, ok := pairStates[fields[i+1]]
		if !ok {
			return nil, fmt.Errorf("%w: output state %q", ErrInvalidField, fields[i+1])
		}
		a, b := states[0], states[1]
		*pair[0] = &a
		*pair[1] = &b
	}
	return r, nil
}

func decodeOutputMode(fields []string) (Response, error) {
	r := OutputModeInfo{base: base{name: OutputModeOp, fields: fields}}
	var err error
	if len(fields) > 0 {
		if r.VerticalRate, err = ratePtr(fields[0]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 1 {
		if r.HorizontalResolution, err = intPtr(fields[1]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 2 {
		if r.VerticalResolution, err = intPtr(fields[2]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 3 {
		v := fields[3]
		if mapped, ok := interlacedValues[v]; ok {
			v = mapped
		}
		r.Interlaced = &v
	}
	if len(fields) > 4 {
		if r.ThreeDMode, err = frame3DPtr(fields[4]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeLabelQuery(fields []string) (Response, error) {
	if len(fields) < 2 {
		return nil, ErrMissingFields
	}
	return LabelQuery{
		base:  base{name: LabelQueryOp, fields: fields},
		Index: fields[0],
		Label: fields[1],
	}, nil
}

func strPtr(s string) *string { return &s }

func intPtr(s string) (*int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidField, s)
	}
	return &n, nil
}

// ratePtr converts a rate reported in hundredths ("6000") to Hz (60.0).
func ratePtr(s string) (*float64, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: vertical rate %q", ErrInvalidField, s)
	}
	v := float64(n) / 100
	return &v, nil
}

// reportedRatePtr handles full-info rates, where "059" denotes 59.94 Hz and
// anything else is already in Hz.
func reportedRatePtr(s string) (*float64, error) {
	if s == "059" {
		v := 59.94
		return &v, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: vertical rate %q", ErrInvalidField, s)
	}
	return &f, nil
}

func inputStatusPtr(s string) (*InputStatus, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 2 {
		return nil, fmt.Errorf("%w: input status %q", ErrInvalidField, s)
	}
	v := InputStatus(n)
	return &v, nil
}

func frame3DPtr(s string) (*Frame3DType, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: 3d type %q", ErrInvalidField, s)
	}
	switch v := Frame3DType(n); v {
	case Frame3DOff, Frame3DFramePacked, Frame3DTopBottom, Frame3DSideBySide:
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: 3d type %q", ErrInvalidField, s)
	}
}
