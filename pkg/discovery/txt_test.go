package discovery

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
)

func testTXT() TXT {
	return TXT{
		ConfigNumber: 3,
		DeviceID:     "C9:7D:3A:2F:A1:7A",
		Model:        "Lightbulb",
		StatusFlags:  StatusFlagNotPaired,
		Category:     CategoryLightbulb,
		SetupHash:    "7Eqqgg==",
	}
}

func TestTXT_Encode(t *testing.T) {
	want := []string{
		"c#=3",
		"ff=0",
		"id=C9:7D:3A:2F:A1:7A",
		"md=Lightbulb",
		"pv=1.1",
		"s#=1",
		"sf=1",
		"ci=5",
		"sh=7Eqqgg==",
	}
	if diff := deep.Equal(testTXT().Encode(), want); diff != nil {
		t.Error(diff)
	}

	noHash := testTXT()
	noHash.SetupHash = ""
	if got := len(noHash.Encode()); got != 8 {
		t.Errorf("Encode() without setup hash has %d entries, want 8", got)
	}
}

func TestDecodeTXT(t *testing.T) {
	in := testTXT()
	got, err := DecodeTXT(in.Encode())
	if err != nil {
		t.Fatalf("DecodeTXT failed: %v", err)
	}
	in.ProtocolVersion = ProtocolVersion
	in.StateNumber = 1
	if diff := deep.Equal(got, in); diff != nil {
		t.Error(diff)
	}
	if got.Paired() {
		t.Error("Paired() = true with sf=1")
	}
}

func TestDecodeTXT_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		records []string
	}{
		{"empty", nil},
		{"bad config number", []string{"c#=x", "id=AA", "md=m", "ci=1"}},
		{"status flags overflow", []string{"c#=1", "id=AA", "md=m", "ci=1", "sf=300"}},
		{"missing id", []string{"c#=1", "md=m", "ci=1"}},
		{"zero config number", []string{"c#=0", "id=AA", "md=m", "ci=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTXT(tt.records); !errors.Is(err, ErrInvalidTXTRecord) {
				t.Errorf("DecodeTXT error = %v, want ErrInvalidTXTRecord", err)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := ParseTXT([]string{"a=1", "b=", "flag", "c=x=y"})
	want := map[string]string{"a": "1", "b": "", "flag": "", "c": "x=y"}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}

func TestSetupHash(t *testing.T) {
	tests := []struct {
		setupID, deviceID, want string
	}{
		{"7OSX", "C9:7D:3A:2F:A1:7A", "7Eqqgg=="},
		{"ABCD", "12:34:56:78:9A:BC", "UL5fEg=="},
	}
	for _, tt := range tests {
		if got := SetupHash(tt.setupID, tt.deviceID); got != tt.want {
			t.Errorf("SetupHash(%q, %q) = %q, want %q", tt.setupID, tt.deviceID, got, tt.want)
		}
	}
}

func TestNextConfigNumber(t *testing.T) {
	tests := []struct{ in, want uint32 }{
		{1, 2},
		{65534, 65535},
		{65535, 1},
	}
	for _, tt := range tests {
		if got := NextConfigNumber(tt.in); got != tt.want {
			t.Errorf("NextConfigNumber(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
