package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConfigurationPayloadRoundTrip(t *testing.T) {
	wantAttrs := []*ConfigAttribute{
		{Type: INTERNAL_IP4_ADDRESS, Value: []byte{10, 0, 0, 5}},
		{Type: INTERNAL_IP4_NETMASK, Value: []byte{255, 255, 255, 0}},
	}
	orig := &ConfigurationPayload{
		PayloadHeader: &PayloadHeader{NextPayload: PayloadTypeNone},
		ConfigType:    CFG_REPLY,
		Attributes:    wantAttrs,
	}
	b := orig.Encode()
	decoded := &ConfigurationPayload{}
	if err := decoded.Decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ConfigType != CFG_REPLY {
		t.Fatalf("ConfigType = %v, want CFG_REPLY", decoded.ConfigType)
	}
	if diff := cmp.Diff(wantAttrs, decoded.Attributes); diff != "" {
		t.Fatalf("Attributes mismatch (-want +got):\n%s", diff)
	}
}

// A netmask attribute whose declared value length runs past the end of
// the payload (a stray/truncated attribute) must be rejected with
// ERR_INVALID_SYNTAX rather than silently truncated or panicking.
func TestConfigurationPayloadStrayNetmaskIsInvalidSyntax(t *testing.T) {
	b := []byte{uint8(CFG_REPLY), 0, 0, 0}
	b = append(b, 0, uint8(INTERNAL_IP4_NETMASK), 0, 8) // declares 8 value bytes
	b = append(b, 255, 255, 255, 0)                     // only 4 are actually present

	decoded := &ConfigurationPayload{}
	err := decoded.Decode(b)
	if err != ERR_INVALID_SYNTAX {
		t.Fatalf("err = %v, want ERR_INVALID_SYNTAX", err)
	}
}

func TestConfigurationPayloadTruncatedAttributeHeaderIsInvalidSyntax(t *testing.T) {
	b := []byte{uint8(CFG_REQUEST), 0, 0, 0, 0, uint8(INTERNAL_IP4_ADDRESS)}
	decoded := &ConfigurationPayload{}
	if err := decoded.Decode(b); err != ERR_INVALID_SYNTAX {
		t.Fatalf("err = %v, want ERR_INVALID_SYNTAX", err)
	}
}
