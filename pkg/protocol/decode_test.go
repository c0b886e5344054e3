package protocol

import (
	"errors"
	"testing"
)

func TestDecodeStatusAlive(t *testing.T) {
	resp, err := DecodeMessage("!S00,Ok")
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	alive, ok := resp.(StatusAlive)
	if !ok {
		t.Fatalf("got %T, want StatusAlive", resp)
	}
	if !alive.IsAlive {
		t.Error("IsAlive = false, want true")
	}
}

func TestDecodeStatusID(t *testing.T) {
	resp, err := DecodeMessage("!S01,RadiancePro,102308,1018,1234")
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	id, ok := resp.(StatusID)
	if !ok {
		t.Fatalf("got %T, want StatusID", resp)
	}
	if id.ModelName == nil || *id.ModelName != "RadiancePro" {
		t.Errorf("ModelName = %v, want RadiancePro", id.ModelName)
	}
	if id.SoftwareRevision == nil || *id.SoftwareRevision != 102308 {
		t.Errorf("SoftwareRevision = %v, want 102308", id.SoftwareRevision)
	}
	if id.SerialNumber == nil || *id.SerialNumber != 1234 {
		t.Errorf("SerialNumber = %v, want 1234", id.SerialNumber)
	}
}

func TestDecodePowerState(t *testing.T) {
	tests := []struct {
		message string
		want    DeviceStatus
	}{
		{"!S02,1", DeviceActive},
		{"!S02,0", DeviceStandby},
		{"Power-up complete.", DeviceActive},
		{"POWER OFF.", DeviceStandby},
	}
	for _, tt := range tests {
		resp, err := DecodeMessage(tt.message)
		if err != nil {
			t.Fatalf("DecodeMessage(%q): %v", tt.message, err)
		}
		power, ok := resp.(PowerState)
		if !ok {
			t.Fatalf("DecodeMessage(%q) = %T, want PowerState", tt.message, resp)
		}
		if power.Status != tt.want {
			t.Errorf("DecodeMessage(%q).Status = %v, want %v", tt.message, power.Status, tt.want)
		}
	}
}

func TestDecodeOutputColorFormat(t *testing.T) {
	resp, err := Decode(OutputColorFormatOp, []string{"2"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	format := resp.(OutputColorFormat)
	if format.Format != ColorFormatRGBVideoLevel {
		t.Errorf("Format = %q, want %q", format.Format, ColorFormatRGBVideoLevel)
	}

	if _, err := Decode(OutputColorFormatOp, []string{"9"}); !errors.Is(err, ErrInvalidField) {
		t.Errorf("invalid color format error = %v, want ErrInvalidField", err)
	}
}

func TestDecodeInputBasicInfo(t *testing.T) {
	resp, err := Decode(InputBasicInfoOp, []string{"2", "A", "3"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	info := resp.(InputBasicInfo)
	if info.LogicalInput == nil || *info.LogicalInput != 2 {
		t.Errorf("LogicalInput = %v, want 2", info.LogicalInput)
	}
	if info.InputMemory == nil || *info.InputMemory != "A" {
		t.Errorf("InputMemory = %v, want A", info.InputMemory)
	}
	if info.PhysicalInput == nil || *info.PhysicalInput != 3 {
		t.Errorf("PhysicalInput = %v, want 3", info.PhysicalInput)
	}

	// Range validation rejects physical inputs above 10.
	if _, err := Decode(InputBasicInfoOp, []string{"2", "A", "11"}); err == nil {
		t.Error("physical input 11 should fail validation")
	}
}

func TestDecodeFullInfo(t *testing.T) {
	fields := []string{"1", "059", "1080", "0", "3", "178", "178", "-", "0", "1", "2", "5", "060", "2160", "178"}
	resp, err := Decode(FullInfoV1Op, fields)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	full := resp.(FullInfo)

	if full.Version != "V1" {
		t.Errorf("Version = %q, want V1", full.Version)
	}
	if full.InputStatus == nil || *full.InputStatus != InputVideoActive {
		t.Errorf("InputStatus = %v, want active video", full.InputStatus)
	}
	if full.SourceVerticalRate == nil || *full.SourceVerticalRate != 59.94 {
		t.Errorf("SourceVerticalRate = %v, want 59.94", full.SourceVerticalRate)
	}
	if full.NLSActive == nil || *full.NLSActive != "Normal" {
		t.Errorf("NLSActive = %v, want Normal", full.NLSActive)
	}
	if full.OutputOn["video_out1"] != "On" || full.OutputOn["video_out2"] != "Off" {
		t.Errorf("OutputOn = %v, want video_out1 on only", full.OutputOn)
	}
	if full.OutputVerticalRate == nil || *full.OutputVerticalRate != 60.0 {
		t.Errorf("OutputVerticalRate = %v, want 60", full.OutputVerticalRate)
	}
}

func TestDecodeOutputBasicInfo(t *testing.T) {
	resp, err := Decode(OutputBasicInfoOp, []string{"0", "1", "0", "3", "2"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out := resp.(OutputBasicInfo)
	if out.VideoOut1 == nil || *out.VideoOut1 != "On" {
		t.Errorf("VideoOut1 = %v, want On", out.VideoOut1)
	}
	if out.VideoOut2 == nil || *out.VideoOut2 != "Off" {
		t.Errorf("VideoOut2 = %v, want Off", out.VideoOut2)
	}
	if out.AudioOut1 == nil || *out.AudioOut1 != "On" {
		t.Errorf("AudioOut1 = %v, want On", out.AudioOut1)
	}
	if out.AudioOut4 == nil || *out.AudioOut4 != "On" {
		t.Errorf("AudioOut4 = %v, want On", out.AudioOut4)
	}
}

func TestDecodeLabelQuery(t *testing.T) {
	resp, err := DecodeMessage("#ZQS1A0!S1A0,HDMI A0")
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	label := resp.(LabelQuery)
	if label.Index != "A0" || label.Label != "HDMI A0" {
		t.Errorf("LabelQuery = %q/%q, want A0/HDMI A0", label.Index, label.Label)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	resp, err := Decode("Z99", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := resp.(Generic); !ok {
		t.Fatalf("got %T, want Generic", resp)
	}
	if resp.Name() != "Z99" {
		t.Errorf("Name = %q, want Z99", resp.Name())
	}
}

func TestDecodeMissingFields(t *testing.T) {
	if _, err := Decode(StatusAliveOp, nil); !errors.Is(err, ErrMissingFields) {
		t.Errorf("error = %v, want ErrMissingFields", err)
	}
}
