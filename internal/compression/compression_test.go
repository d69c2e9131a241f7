package compression

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	for _, m := range []Mode{ModeNone, ModeZlib, ModeSnappy, ModeLZ4, ModeLZ4HC} {
		t.Run(m.String(), func(t *testing.T) {
			compressed, err := Compress(m, payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			got, err := Decompress(m, compressed, len(payload))
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch for mode %s", m)
			}
		})
	}
}

func TestEmptyInput(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeZlib, ModeSnappy} {
		compressed, err := Compress(m, nil)
		if err != nil {
			t.Fatalf("Compress(%s, nil): %v", m, err)
		}
		got, err := Decompress(m, compressed, 0)
		if err != nil {
			t.Fatalf("Decompress(%s, ...): %v", m, err)
		}
		if len(got) != 0 {
			t.Fatalf("Decompress(%s, nil) = %v, want empty", m, got)
		}
	}
}

func TestUnknownModeOnWrite(t *testing.T) {
	for _, m := range []Mode{ModeLZO, ModeLZF, ModeBZip2} {
		if _, err := Compress(m, []byte("data")); err == nil {
			t.Errorf("Compress(%s, ...) = nil error, want ErrUnknownCompressMode", m)
		}
	}
}

func TestUnknownModeOnRead(t *testing.T) {
	for _, m := range []Mode{ModeLZO, ModeLZF} {
		if _, err := Decompress(m, []byte("data"), 0); err == nil {
			t.Errorf("Decompress(%s, ...) = nil error, want ErrUnknownCompressMode", m)
		}
	}
}

func TestBZip2DecodeOnly(t *testing.T) {
	if _, err := Compress(ModeBZip2, []byte("data")); err == nil {
		t.Error("Compress(ModeBZip2, ...) should fail: no bzip2 encoder available")
	}
	if ModeBZip2.IsWritable() {
		t.Error("ModeBZip2.IsWritable() = true, want false")
	}
	if !ModeBZip2.IsReadable() {
		t.Error("ModeBZip2.IsReadable() = false, want true")
	}
}

func TestModeValuesAreStable(t *testing.T) {
	// These numeric values are part of the on-disk format.
	testCases := []struct {
		mode     Mode
		expected uint8
	}{
		{ModeNone, 0},
		{ModeLZO, 1},
		{ModeZlib, 2},
		{ModeBZip2, 3},
		{ModeLZF, 4},
		{ModeSnappy, 5},
		{ModeLZ4, 6},
		{ModeLZ4HC, 7},
	}
	for _, tc := range testCases {
		if uint8(tc.mode) != tc.expected {
			t.Errorf("%s = %d, want %d", tc.mode, tc.mode, tc.expected)
		}
	}
}

func TestMaxModesCap(t *testing.T) {
	if MaxModes != 16 {
		t.Errorf("MaxModes = %d, want 16", MaxModes)
	}
	if AllModes >= 1<<MaxModes {
		t.Errorf("AllModes overflows the %d-bit compression-flag layout", MaxModes)
	}
}

func TestIncompressibleDataFallsBackCleanly(t *testing.T) {
	// Random-looking small input may not compress smaller than itself
	// under some algorithms; selection (internal/codec) handles the
	// "output not smaller than input" case, not this package, but we
	// still require Compress itself never errors on such input.
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	for _, m := range []Mode{ModeZlib, ModeSnappy, ModeLZ4, ModeLZ4HC} {
		if _, err := Compress(m, data); err != nil {
			t.Errorf("Compress(%s, short random data): %v", m, err)
		}
	}
}
