// Package protocol implements the ASCII control protocol spoken by
// Radiance-class video processors: wire framing constants, inbound message
// extraction, and typed response decoding.
package protocol

// Outbound wire framing: '#' + command bytes + '{'.
var (
	CmdStart      = []byte("#")
	CmdTerminator = []byte("{")
)

// Terminator marks the end of an inbound message.
const Terminator = "\n"

// CmdDevicePrefix starts every device query command.
const CmdDevicePrefix = "ZQ"

// Query opcodes.
const (
	InputBasicInfoOp  = "I00"
	InputVideoOp      = "I01"
	FullInfoV1Op      = "I21"
	FullInfoV2Op      = "I22"
	FullInfoV3Op      = "I23"
	FullInfoV4Op      = "I24"
	GameModeQueryOp   = "I53"
	AutoAspectQueryOp = "I54"

	StatusAliveOp = "S00"
	StatusIDOp    = "S01"
	StatusPowerOp = "S02"

	LabelQueryOp = "S1"

	OutputBasicInfoOp   = "O00"
	OutputModeOp        = "O01"
	OutputColorFormatOp = "O18"
)

// Direct command opcodes (sent without the ZQ prefix).
const (
	DisplayClearOp       = "ZC"
	DisplayMessageOp     = "ZT"
	DisplayInputAspectOp = "ZY811"
	HotplugOp            = "ZY520"
	GameModeOp           = "ZY551"
	FanSpeedOp           = "ZY522"
	SetLabelOp           = "ZY524"
)

// Output color format values reported by O18.
const (
	ColorFormat422           = "422"
	ColorFormat444           = "444"
	ColorFormatRGBVideoLevel = "RGB video level"
	ColorFormatRGBPCLevel    = "RGB PC level"
	ColorFormat420           = "420"
)

// DeviceStatus reports whether the processor is on or in standby.
type DeviceStatus string

const (
	DeviceStandby DeviceStatus = "Standby"
	DeviceActive  DeviceStatus = "Active"
)

// StateStatus is a generic enabled/disabled toggle.
type StateStatus string

const (
	StateDisabled StateStatus = "Disabled"
	StateEnabled  StateStatus = "Enabled"
)

// InputStatus describes the active video source.
type InputStatus int

const (
	InputNone InputStatus = iota
	InputVideoActive
	InputTestPattern
)

func (s InputStatus) String() string {
	switch s {
	case InputNone:
		return "No Source"
	case InputVideoActive:
		return "Active Video"
	case InputTestPattern:
		return "Internal Pattern"
	default:
		return "unknown"
	}
}

// Frame3DType describes frame format and input 3D type.
type Frame3DType int

const (
	Frame3DOff         Frame3DType = 0
	Frame3DFramePacked Frame3DType = 2
	Frame3DTopBottom   Frame3DType = 4
	Frame3DSideBySide  Frame3DType = 8
)

func (t Frame3DType) String() string {
	switch t {
	case Frame3DOff:
		return "Off"
	case Frame3DFramePacked:
		return "Frame Packed"
	case Frame3DTopBottom:
		return "Top-Bottom"
	case Frame3DSideBySide:
		return "Side-by-Side"
	default:
		return "unknown"
	}
}

// RemoteKey describes one entry of the fixed single-keystroke command table.
type RemoteKey struct {
	Remote string
	Desc   string
}

// RemoteKeys maps raw keystroke characters to their remote-command meaning.
// This table is a fixed, versionless constant of the protocol.
var RemoteKeys = map[string]RemoteKey{
	"%":    {Remote: "ON", Desc: "Power on"},
	"$":    {Remote: "STBY", Desc: "Power to standby"},
	"M":    {Remote: "MENU", Desc: "Activate menu"},
	"X":    {Remote: "EXIT", Desc: "Exit. Often acts as a cancel key"},
	"U":    {Remote: "HELP", Desc: "Displays on-screen help for highlighted menu item."},
	"!":    {Remote: "CLR", Desc: "Force menu off"},
	"i":    {Remote: "INPUT", Desc: "Choose input (i2 for input 2, i+2 for input 12)"},
	"L":    {Remote: "ZONE", Desc: "Output zone select"},
	":":    {Remote: "ALT", Desc: "Alternate use of key"},
	"P":    {Remote: "PREV", Desc: "Display previous input"},
	"e":    {Remote: "PIP-OFF", Desc: "PIP off"},
	"p":    {Remote: "PIP-SEL", Desc: "PIP select"},
	"r":    {Remote: "PIP-SWAP", Desc: "PIP swap"},
	"m":    {Remote: "PIP-MODE", Desc: "PIP mode"},
	"k":    {Remote: "OK", Desc: "Accept command"},
	"<CR>": {Remote: "OK", Desc: "Accept command (PC Enter key)"},
	"<":    {Remote: "<", Desc: "Left arrow"},
	">":    {Remote: ">", Desc: "Right arrow"},
	"v":    {Remote: "v", Desc: "Down arrow"},
	"^":    {Remote: "^", Desc: "Up arrow"},
	"0":    {Remote: "0", Desc: "Enter the digit 0"},
	"1":    {Remote: "1", Desc: "Enter the digit 1"},
	"2":    {Remote: "2", Desc: "Enter the digit 2"},
	"3":    {Remote: "3", Desc: "Enter the digit 3"},
	"4":    {Remote: "4", Desc: "Enter the digit 4"},
	"5":    {Remote: "5", Desc: "Enter the digit 5"},
	"6":    {Remote: "6", Desc: "Enter the digit 6"},
	"7":    {Remote: "7", Desc: "Enter the digit 7"},
	"8":    {Remote: "8", Desc: "Enter the digit 8"},
	"9":    {Remote: "9", Desc: "Enter the digit 9"},
	"+":    {Remote: "10+", Desc: "Add 10 to the next digit entered"},
	"N":    {Remote: "NLS", Desc: "Non-Linear-Stretch"},
	"n":    {Remote: "4:3", Desc: "Select 4:3 input source aspect"},
	"[":    {Remote: "4:3NZ", Desc: "Select 4:3 input source aspect. No zoom."},
	"l":    {Remote: "LBOX", Desc: "Select 4:3 letterbox input source aspect"},
	"]":    {Remote: "LBOXNZ", Desc: "Select 4:3 letterbox input source aspect. No zoom"},
	"w":    {Remote: "16:9", Desc: "Select 16:9 input source aspect"},
	"*":    {Remote: "16:9NZ", Desc: "Select 16:9 input source aspect. No zoom."},
	"j":    {Remote: "1.85", Desc: "Select 1.85 input source aspect"},
	"/":    {Remote: "1.85NZ", Desc: "Select 1.85 input source aspect. No zoom."},
	"A":    {Remote: "1.90", Desc: "Select 1.90 input source aspect"},
	"C":    {Remote: "2.00", Desc: "Select 2.00 input source aspect"},
	"E":    {Remote: "2.20", Desc: "Select 2.20 input source aspect"},
	"W":    {Remote: "2.35", Desc: "Select 2.35 input source aspect"},
	"K":    {Remote: "2.35NZ", Desc: "Select 2.35 input source aspect. No zoom."},
	"G":    {Remote: "2.40", Desc: "Select 2.40 input source aspect"},
	"a":    {Remote: "MEMA", Desc: "Select MEMA"},
	"b":    {Remote: "MEMB", Desc: "Select MEMB"},
	"c":    {Remote: "MEMC", Desc: "Select MEMC"},
	"d":    {Remote: "MEMD", Desc: "Select MEMD"},
	"g":    {Remote: "NA", Desc: "Onscreen messages on"},
	"s":    {Remote: "NA", Desc: "Onscreen messages off"},
	"V":    {Remote: "AAD", Desc: "Auto Aspect Disable"},
	"?":    {Remote: "AAE", Desc: "Auto Aspect Enable"},
	"S":    {Remote: "Save", Desc: "Shortcut to do a Save"},
	"Y":    {Remote: "HDR_Setup", Desc: "Show HDR Parameter menu"},
	"H":    {Remote: "Pattern", Desc: "Show test pattern"},
	"_":    {Remote: "NA", Desc: "No-operation character, always ignored"},
}

// LookupRemote finds the keystroke for a remote-command name. The search key
// is "remote" by default; "desc" matches on the description instead.
func LookupRemote(value, key string) (string, bool) {
	for k, v := range RemoteKeys {
		switch key {
		case "desc":
			if v.Desc == value {
				return k, true
			}
		default:
			if v.Remote == value {
				return k, true
			}
		}
	}
	return "", false
}

// MatchKeystroke checks whether the buffer starts with a known keystroke or
// a '#'-prefixed remote command. It reports the matched key, its table entry,
// and whether the match was a bare keystroke.
func MatchKeystroke(buffer string) (key string, entry RemoteKey, isKeypress, ok bool) {
	for k, v := range RemoteKeys {
		if len(buffer) >= len(k)+1 && buffer[0] == '#' && buffer[1:len(k)+1] == k {
			return k, v, false, true
		}
		if len(buffer) >= len(k) && buffer[:len(k)] == k {
			return k, v, true, true
		}
	}
	return "", RemoteKey{}, false, false
}
