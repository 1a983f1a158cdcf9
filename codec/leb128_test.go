package codec

import (
	"bytes"
	"io"
	"testing"
)

func TestUlebKnownEncodings(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
	}
	for _, tc := range cases {
		got := AppendUleb(nil, tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("uleb(%d) = % x, want % x", tc.v, got, tc.want)
		}
		dec, err := Uleb(bytes.NewReader(got))
		if err != nil || dec != tc.v {
			t.Errorf("uleb decode(% x) = %d, %v", got, dec, err)
		}
	}
}

func TestSlebKnownEncodings(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{100, []byte{0xE4, 0x00}},
		{-1, []byte{0x7F}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{3600, []byte{0x90, 0x1C}},
		{-123456, []byte{0xC0, 0xBB, 0x78}},
	}
	for _, tc := range cases {
		got := AppendSleb(nil, tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("sleb(%d) = % x, want % x", tc.v, got, tc.want)
		}
		dec, err := Sleb(bytes.NewReader(got))
		if err != nil || dec != tc.v {
			t.Errorf("sleb decode(% x) = %d, %v", got, dec, err)
		}
	}
}

func TestLebRoundTrip(t *testing.T) {
	uvals := []uint64{0, 1, 300, 1 << 20, 1<<32 - 1, 1<<63 - 1, 1<<64 - 1}
	for _, v := range uvals {
		dec, err := Uleb(bytes.NewReader(AppendUleb(nil, v)))
		if err != nil || dec != v {
			t.Errorf("uleb round trip %d: got %d, %v", v, dec, err)
		}
	}
	svals := []int64{0, 1, -1, 3600, -3600, 1 << 40, -(1 << 40), 1<<63 - 1, -1 << 63}
	for _, v := range svals {
		dec, err := Sleb(bytes.NewReader(AppendSleb(nil, v)))
		if err != nil || dec != v {
			t.Errorf("sleb round trip %d: got %d, %v", v, dec, err)
		}
	}
}

func TestLebTruncatedInput(t *testing.T) {
	if _, err := Uleb(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("empty uleb: %v", err)
	}
	// Continuation bit set but stream ends.
	if _, err := Uleb(bytes.NewReader([]byte{0x80})); err != io.EOF {
		t.Errorf("truncated uleb: %v", err)
	}
	if _, err := Sleb(bytes.NewReader([]byte{0xFF, 0xFF})); err != io.EOF {
		t.Errorf("truncated sleb: %v", err)
	}
}
