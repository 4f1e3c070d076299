package issue

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Issue{
		New(Proposal, 1, []byte("hello")),
		New(Vote, 18446744073709551615, []byte("")),
		New(Resolution, 42, []byte("contains | a pipe")),
	}
	for _, want := range cases {
		encoded := Encode(want)
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", encoded, err)
		}
		if got.Kind != want.Kind || got.ID != want.ID || !bytes.Equal(got.Content, want.Content) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string]string{
		"too few parts":   "xxx",
		"bad kind letter": "q|1|hello",
		"bad id":          "p|notanumber|hello",
		"bad utf8":        string([]byte{'p', '|', '1', '|', 0xff, 0xfe}),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(raw)); err == nil {
				t.Fatalf("expected decode error for %q", raw)
			}
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	got := Encode(New(Proposal, 7, []byte("hi")))
	want := "p|7|hi"
	if string(got) != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}
