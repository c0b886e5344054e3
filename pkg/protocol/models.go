package protocol

import (
	"github.com/go-playground/validator/v10"
)

// validate checks decoded responses against their range constraints before
// they ever reach the state cache.
var validate = validator.New()

// Response is a decoded inbound protocol message. Unknown opcodes still
// decode to a Generic response carrying the raw fields.
type Response interface {
	// Name returns the protocol opcode.
	Name() string

	// Fields returns the raw field values in wire order.
	Fields() []string
}

type base struct {
	name   string
	fields []string
}

func (b base) Name() string     { return b.name }
func (b base) Fields() []string { return b.fields }

// Generic carries the raw fields of a message with no registered decoder.
type Generic struct {
	base
}

// StatusAlive is the response to a liveness probe (S00).
type StatusAlive struct {
	base
	IsAlive bool
}

// StatusID identifies the device (S01).
type StatusID struct {
	base
	ModelName        *string `validate:"omitempty,max=100"`
	SoftwareRevision *int    `validate:"omitempty,gte=0"`
	ModelNumber      *int    `validate:"omitempty,gte=0"`
	SerialNumber     *int    `validate:"omitempty,gte=0"`
}

// PowerState reports whether the device is active or in standby (S02).
type PowerState struct {
	base
	Status DeviceStatus
}

// AutoAspect reports the auto-aspect toggle (I54).
type AutoAspect struct {
	base
	Status StateStatus
}

// GameMode reports the game-mode toggle (I53).
type GameMode struct {
	base
	Status StateStatus
}

// OutputColorFormat reports the output color format (O18).
type OutputColorFormat struct {
	base
	Format string
}

// InputBasicInfo describes the selected input (I00).
type InputBasicInfo struct {
	base
	LogicalInput  *int    `validate:"omitempty,gte=0"`
	InputMemory   *string `validate:"omitempty,oneof=A B C D"`
	PhysicalInput *int    `validate:"omitempty,gte=1,lte=10"`
}

// InputVideo describes the incoming video signal (I01).
type InputVideo struct {
	base
	Status               *InputStatus
	VerticalRate         *float64 `validate:"omitempty,gte=0"`
	HorizontalResolution *int     `validate:"omitempty,gte=0"`
	VerticalResolution   *int     `validate:"omitempty,gte=0"`
	Interlaced           *string
	ThreeDType           *Frame3DType
}

// FullInfo aggregates the device's full status report. V1 populates the
// first fifteen fields; V2 through V4 extend the set.
type FullInfo struct {
	base
	Version string

	InputStatus              *InputStatus
	SourceVerticalRate       *float64
	SourceVerticalResolution *int
	Source3DMode             *Frame3DType
	ActiveInputConfigNumber  *int
	SourceRasterAspect       *int
	SourceContentAspect      *int
	NLSActive                *string
	Output3DMode             *Frame3DType
	OutputOn                 map[string]string
	ActiveOutputCMS          *int `validate:"omitempty,gte=0,lte=7"`
	ActiveOutputStyle        *int `validate:"omitempty,gte=0,lte=7"`
	OutputVerticalRate       *float64
	OutputVerticalResolution *int
	OutputAspect             *int

	OutputColorspace   *int
	SourceDynamicRange *string
	SourceMode         *string
	OutputMode         *string

	VirtualInputSelected  *int `validate:"omitempty,gte=1,lte=19"`
	PhysicalInputSelected *int `validate:"omitempty,gte=1,lte=19"`

	DetectedSourceRasterAspect *int
	DetectedSourceAspect       *int
}

// OutputBasicInfo describes which video and audio outputs are enabled (O00).
type OutputBasicInfo struct {
	base
	OutputConfig *int `validate:"omitempty,gte=0,lte=7"`
	VideoOut1    *string
	VideoOut2    *string
	VideoOut3    *string
	VideoOut4    *string
	AudioOut1    *string
	AudioOut2    *string
	AudioOut3    *string
	AudioOut4    *string
}

// OutputModeInfo describes the outgoing video mode (O01).
type OutputModeInfo struct {
	base
	VerticalRate         *float64
	HorizontalResolution *int
	VerticalResolution   *int
	Interlaced           *string
	ThreeDMode           *Frame3DType
}

// LabelQuery carries one input label (S1).
type LabelQuery struct {
	base
	Index string
	Label string
}
