package protocol

import (
	"strings"
)

// ParsedMessage is a transient value extracted from the stream buffer: the
// protocol opcode plus its ordered fields. It is produced per complete
// message and consumed immediately by the decoder.
type ParsedMessage struct {
	// Name is the protocol opcode, empty when the message carried none.
	Name string

	// Fields are the comma-separated values following the opcode.
	Fields []string

	// Raw is the message text after textual substitutions.
	Raw string
}

// Textual substitutions applied before generic parsing. The device reports
// power transitions as prose rather than as a framed status message.
const (
	powerOffText = "POWER OFF."
	powerUpText  = "Power-up complete."
)

// ParseMessage splits a complete message into opcode and fields.
//
// The generic grammar locates the last '!' and splits everything after it on
// commas; the first token is the opcode. Label-set acknowledgments (prefix
// "#ZQS1") embed the label index before the '!' and the value after the
// following comma, so they get a bespoke two-field extraction.
func ParseMessage(message string) ParsedMessage {
	parsed := ParsedMessage{Raw: message}

	switch {
	case strings.Contains(message, powerOffText):
		parsed.Raw = "!" + StatusPowerOp + ",0"
	case strings.Contains(message, powerUpText):
		parsed.Raw = "!" + StatusPowerOp + ",1"
	case strings.HasPrefix(message, "#ZQS1"):
		if m, ok := parseLabelEcho(message); ok {
			return m
		}
	}

	pos := strings.LastIndex(parsed.Raw, "!")
	if pos == -1 {
		return parsed
	}

	fields := strings.Split(parsed.Raw[pos+1:], ",")
	parsed.Raw = parsed.Raw[pos:]
	if len(fields) > 0 {
		parsed.Name = fields[0]
		parsed.Fields = fields[1:]
	}
	return parsed
}

// parseLabelEcho extracts the label index and value from an echoed label-set
// acknowledgment such as "#ZQS1A0!S1A0,HDMI A0".
func parseLabelEcho(message string) (ParsedMessage, bool) {
	head, tail, found := strings.Cut(message, "!")
	if !found {
		return ParsedMessage{}, false
	}
	parts := strings.Split(tail, ",")
	if len(parts) < 2 {
		return ParsedMessage{}, false
	}
	return ParsedMessage{
		Name:   LabelQueryOp,
		Fields: []string{head[len("#ZQS1"):], parts[1]},
		Raw:    message,
	}, true
}
