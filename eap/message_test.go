package eap

import (
	"bytes"
	"testing"
)

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Message{
		{Code: CodeRequest, Identifier: 1, Type: TypeIdentity, TypeData: []byte("user@example.com")},
		{Code: CodeResponse, Identifier: 2, Type: TypeNak, TypeData: []byte{uint8(TypeSIM), uint8(TypeAKA)}},
		{Code: CodeSuccess, Identifier: 3},
		{Code: CodeFailure, Identifier: 4},
	}
	for _, orig := range cases {
		b := orig.Encode()
		decoded, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %v: %v", orig, err)
		}
		if decoded.Code != orig.Code || decoded.Identifier != orig.Identifier {
			t.Fatalf("header mismatch: got %+v, want %+v", decoded, orig)
		}
		if orig.Code == CodeRequest || orig.Code == CodeResponse {
			if decoded.Type != orig.Type || !bytes.Equal(decoded.TypeData, orig.TypeData) {
				t.Fatalf("body mismatch: got %+v, want %+v", decoded, orig)
			}
		}
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	b := (&Message{Code: CodeRequest, Identifier: 1, Type: TypeIdentity, TypeData: []byte("x")}).Encode()
	b = append(b, 0xff) // trailing byte not reflected in the length field
	if _, err := Decode(b); err == nil {
		t.Fatalf("expected an error for a length/size mismatch")
	}
}

func TestDecodeRejectsOversizedSuccessFailure(t *testing.T) {
	b := []byte{uint8(CodeSuccess), 1, 0, 5, 0} // length field claims 5, not 4
	if _, err := Decode(b); err == nil {
		t.Fatalf("expected an error for an oversized success/failure message")
	}
}

func TestNakResponseListsDesiredTypes(t *testing.T) {
	nak := NakResponse(9, TypeAKAPrime, TypeMSCHAPv2)
	if nak.Type != TypeNak {
		t.Fatalf("Type = %v, want TypeNak", nak.Type)
	}
	if !bytes.Equal(nak.TypeData, []byte{uint8(TypeAKAPrime), uint8(TypeMSCHAPv2)}) {
		t.Fatalf("TypeData = %v, want [AKAPrime, MSCHAPv2]", nak.TypeData)
	}
}
