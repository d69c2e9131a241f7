package codec

import (
	"bytes"
	"math/bits"
	"testing"

	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// flipHeaderForTest simulates a foreign-endian writer by byte-swapping
// every multi-byte integer field in the header, leaving the type name
// and compressed payload bytes untouched. A foreign writer computes its
// header checksum over its own header bytes, so the checksum is
// recomputed (Adler32) over the flipped bytes and stored flipped too.
func flipHeaderForTest(packed []byte) []byte {
	out := append([]byte(nil), packed...)
	for _, off := range []int{4, 8, 12, 16, 20, 24, 28, 32} {
		v := bits.ReverseBytes32(uint32(out[off]) | uint32(out[off+1])<<8 | uint32(out[off+2])<<16 | uint32(out[off+3])<<24)
		out[off] = byte(v)
		out[off+1] = byte(v >> 8)
		out[off+2] = byte(v >> 16)
		out[off+3] = byte(v >> 24)
	}
	v16 := bits.ReverseBytes16(uint16(out[38]) | uint16(out[39])<<8)
	out[38] = byte(v16)
	out[39] = byte(v16 >> 8)
	nameLen := int(packed[16]) | int(packed[17])<<8 | int(packed[18])<<16 | int(packed[19])<<24
	sum := bits.ReverseBytes32(dschecksum.Compute(dschecksum.AlgorithmAdler32, out[4:headerSize+padTo8(nameLen)]))
	out[0] = byte(sum)
	out[1] = byte(sum >> 8)
	out[2] = byte(sum >> 16)
	out[3] = byte(sum >> 24)
	return out
}

func buildExtent(t *testing.T, withNulls bool) (*extent.Extent, typeregistry.Field, typeregistry.Field) {
	t.Helper()
	et, err := typeregistry.NewExtentType("ns", "T", 1, 0, []typeregistry.Field{
		{Name: "k", Type: typeregistry.FieldInt32, Nullable: true},
		{Name: "name", Type: typeregistry.FieldVariable32},
	})
	if err != nil {
		t.Fatalf("NewExtentType: %v", err)
	}
	k, _ := et.FieldByName("k")
	name, _ := et.FieldByName("name")

	e := extent.New(et)
	for i := range 20 {
		idx := e.AppendRecord()
		if err := e.SetInt32(idx, k, int32(i)); err != nil {
			t.Fatal(err)
		}
		if err := e.SetVariable32(idx, name, []byte("value-padding-padding-padding")); err != nil {
			t.Fatal(err)
		}
		if withNulls && i%5 == 0 {
			if err := e.SetNull(idx, k, true); err != nil {
				t.Fatal(err)
			}
		}
	}
	return e, k, name
}

func libraryFor(t *testing.T, et *typeregistry.ExtentType) *typeregistry.Library {
	t.Helper()
	lib := typeregistry.NewLibrary()
	if err := lib.Register(et); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return lib
}

func TestPackUnpackRoundTrip(t *testing.T) {
	e, k, name := buildExtent(t, false)
	lib := libraryFor(t, e.Type)

	packed, chain, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		Level:             9,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, gotChain, err := Unpack(packed, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
	})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if gotChain != chain {
		t.Errorf("chain mismatch: pack=%x unpack=%x", chain, gotChain)
	}
	if got.NRecords() != e.NRecords() {
		t.Fatalf("NRecords mismatch: %d vs %d", got.NRecords(), e.NRecords())
	}

	gk, _ := got.Type.FieldByName("k")
	gname, _ := got.Type.FieldByName("name")
	for i := range got.NRecords() {
		wantK, _ := e.GetInt32(i, k)
		gotK, err := got.GetInt32(i, gk)
		if err != nil || gotK != wantK {
			t.Errorf("record %d: k = %d, want %d (err=%v)", i, gotK, wantK, err)
		}
		wantName, _ := e.GetVariable32(i, name)
		gotName, err := got.GetVariable32(i, gname)
		if err != nil || !bytes.Equal(gotName, wantName) {
			t.Errorf("record %d: name = %q, want %q (err=%v)", i, gotName, wantName, err)
		}
	}
}

func TestPackUnpackWithNulls(t *testing.T) {
	e, k, _ := buildExtent(t, true)
	lib := libraryFor(t, e.Type)

	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmCRC32C,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, _, err := Unpack(packed, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmCRC32C,
		VerifyChecksums:   true,
	})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	gk, _ := got.Type.FieldByName("k")
	for i := range got.NRecords() {
		wantNull := i%5 == 0
		gotNull, err := got.IsNull(i, gk)
		if err != nil || gotNull != wantNull {
			t.Errorf("record %d: IsNull = %v, want %v (err=%v)", i, gotNull, wantNull, err)
		}
	}
	_ = k
}

func TestPackAllZeroNullBitmapIsCompacted(t *testing.T) {
	e, _, _ := buildExtent(t, false) // no nulls set: bitmap should compact
	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed[38]&1 == 0 {
		t.Error("expected null-bitmap-stripped flag to be set when all bits are zero")
	}
}

func TestUnpackDetectsBadBodyChecksum(t *testing.T) {
	e, _, _ := buildExtent(t, false)
	lib := libraryFor(t, e.Type)
	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	// Corrupt a byte inside the fixed payload, past the header+name.
	corrupted := append([]byte(nil), packed...)
	corrupted[headerSize+8] ^= 0xFF

	_, _, err = Unpack(corrupted, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
	})
	if err == nil {
		t.Fatal("expected checksum error on corrupted buffer")
	}
}

func TestUnpackDetectsChainBroken(t *testing.T) {
	e, _, _ := buildExtent(t, false)
	lib := libraryFor(t, e.Type)
	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		PreviousChain:     0,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	_, _, err = Unpack(packed, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
		PreviousChain:     0xDEADBEEF, // wrong starting point breaks the chain
	})
	if err != ErrChainBroken {
		t.Errorf("expected ErrChainBroken, got %v", err)
	}
}

func TestUnpackRejectsTruncatedBuffer(t *testing.T) {
	e, _, _ := buildExtent(t, false)
	lib := libraryFor(t, e.Type)
	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	_, _, err = Unpack(packed[:headerSize-1], UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
	})
	if err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

func TestUnpackHandlesForeignByteOrder(t *testing.T) {
	e, k, name := buildExtent(t, true)
	lib := libraryFor(t, e.Type)

	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	flipped := flipHeaderForTest(packed)

	got, _, err := Unpack(flipped, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
		NeedBitflip:       true,
	})
	if err != nil {
		t.Fatalf("Unpack with NeedBitflip: %v", err)
	}
	if got.NRecords() != e.NRecords() {
		t.Fatalf("NRecords mismatch: %d vs %d", got.NRecords(), e.NRecords())
	}

	gk, _ := got.Type.FieldByName("k")
	gname, _ := got.Type.FieldByName("name")
	for i := range got.NRecords() {
		wantK, _ := e.GetInt32(i, k)
		gotK, err := got.GetInt32(i, gk)
		if err != nil || gotK != wantK {
			t.Errorf("record %d: k = %d, want %d (err=%v)", i, gotK, wantK, err)
		}
		wantName, _ := e.GetVariable32(i, name)
		gotName, err := got.GetVariable32(i, gname)
		if err != nil || !bytes.Equal(gotName, wantName) {
			t.Errorf("record %d: name = %q, want %q (err=%v)", i, gotName, wantName, err)
		}
		wantNull := i%5 == 0
		gotNull, err := got.IsNull(i, gk)
		if err != nil || gotNull != wantNull {
			t.Errorf("record %d: IsNull = %v, want %v (err=%v)", i, gotNull, wantNull, err)
		}
	}
}

func TestCompressBodyThenAssembleHeaderMatchesPack(t *testing.T) {
	e, _, _ := buildExtent(t, true)
	lib := libraryFor(t, e.Type)
	opts := PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmXXH3,
		PreviousChain:     0xABCD,
	}

	want, wantChain, err := Pack(e, opts)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	body, err := CompressBody(e, opts)
	if err != nil {
		t.Fatalf("CompressBody: %v", err)
	}
	got, gotChain, err := AssembleHeader(body, opts.PreviousChain, opts.ChecksumAlgorithm)
	if err != nil {
		t.Fatalf("AssembleHeader: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("AssembleHeader output differs from Pack output")
	}
	if gotChain != wantChain {
		t.Errorf("chain = %x, want %x", gotChain, wantChain)
	}

	// A CompressedBody carries no dependency on PreviousChain, so the
	// same body assembled against a different previous chain must yield
	// a different chain but a structurally valid, unpackable extent.
	got2, chain2, err := AssembleHeader(body, 0, opts.ChecksumAlgorithm)
	if err != nil {
		t.Fatalf("AssembleHeader with different PreviousChain: %v", err)
	}
	if chain2 == gotChain {
		t.Error("expected different chain for different PreviousChain")
	}
	if _, _, err := Unpack(got2, UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: opts.ChecksumAlgorithm,
		VerifyChecksums:   true,
	}); err != nil {
		t.Errorf("Unpack(AssembleHeader with PreviousChain=0): %v", err)
	}
}

func TestUnpackRejectsUnknownType(t *testing.T) {
	e, _, _ := buildExtent(t, false)
	emptyLib := typeregistry.NewLibrary()
	packed, _, err := Pack(e, PackOptions{
		AllowedModes:      compression.AllModes,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	_, _, err = Unpack(packed, UnpackOptions{
		Library:           emptyLib,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		VerifyChecksums:   true,
	})
	if err == nil {
		t.Fatal("expected error for type not in library")
	}
}
