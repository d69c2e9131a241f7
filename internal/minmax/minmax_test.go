package minmax

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/internal/typeregistry"
	"github.com/aalhour/extentstore/vfs"
)

func rowType(t *testing.T) *typeregistry.ExtentType {
	t.Helper()
	et, err := typeregistry.NewExtentType("ns", "Row", 1, 0, []typeregistry.Field{
		{Name: "k", Type: typeregistry.FieldInt32},
		{Name: "v", Type: typeregistry.FieldInt32},
	})
	if err != nil {
		t.Fatalf("NewExtentType: %v", err)
	}
	return et
}

func mustGV(i int32) gvalue.GeneralValue { return gvalue.FromInt32(i) }

func writeDataFile(t *testing.T, path string, rt *typeregistry.ExtentType, extents [][]int32) []int64 {
	t.Helper()
	lib := typeregistry.NewLibrary()
	if err := lib.Register(rt); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w, err := dsfile.Create(vfs.Default(), path, lib, dsfile.DefaultWriterOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	kf, _ := rt.FieldByName("k")
	var offsets []int64
	for _, ks := range extents {
		e := extent.New(rt)
		for _, k := range ks {
			idx := e.AppendRecord()
			if err := e.SetInt32(idx, kf, k); err != nil {
				t.Fatal(err)
			}
		}
		off, err := w.AppendExtent(e)
		if err != nil {
			t.Fatalf("AppendExtent: %v", err)
		}
		offsets = append(offsets, off)
	}
	if err := w.Close(false); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return offsets
}

func writeIndexFile(t *testing.T, path string, b *Builder) {
	t.Helper()
	lib := typeregistry.NewLibrary()
	if err := lib.Register(b.Type()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w, err := dsfile.Create(vfs.Default(), path, lib, dsfile.DefaultWriterOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.AppendExtent(b.Extent()); err != nil {
		t.Fatalf("AppendExtent: %v", err)
	}
	if err := w.Close(false); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestIntervalsOverlap(t *testing.T) {
	cases := []struct {
		name                   string
		aMin, aMax, bMin, bMax int32
		want                   bool
	}{
		{"disjoint-below", 0, 5, 10, 15, false},
		{"disjoint-above", 20, 25, 10, 15, false},
		{"touching", 0, 10, 10, 20, true},
		{"nested", 12, 13, 10, 20, true},
		{"overlap-left", 5, 12, 10, 20, true},
		{"overlap-right", 15, 25, 10, 20, true},
		{"identical", 10, 20, 10, 20, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := IntervalsOverlap(mustGV(c.aMin), mustGV(c.aMax), mustGV(c.bMin), mustGV(c.bMax))
			if err != nil {
				t.Fatalf("IntervalsOverlap: %v", err)
			}
			if got != c.want {
				t.Errorf("IntervalsOverlap(%d,%d,%d,%d) = %v, want %v", c.aMin, c.aMax, c.bMin, c.bMax, got, c.want)
			}
		})
	}
}

func TestBuildIndexTypeSchema(t *testing.T) {
	rt := rowType(t)
	it, err := BuildIndexType(rt, []string{"k"}, "k")
	if err != nil {
		t.Fatalf("BuildIndexType: %v", err)
	}
	if it.Name != "DSIndex::Extent::MinMax::Row" {
		t.Errorf("Name = %q", it.Name)
	}
	for _, want := range []string{"filename", "extent_offset", "min:k", "max:k", "k"} {
		if _, ok := it.FieldByName(want); !ok {
			t.Errorf("missing field %q", want)
		}
	}
}

func TestBuildIndexTypeUnknownField(t *testing.T) {
	rt := rowType(t)
	if _, err := BuildIndexType(rt, []string{"nope"}, "k"); err == nil {
		t.Fatal("expected error for unknown indexed column")
	}
	if _, err := BuildIndexType(rt, []string{"k"}, "nope"); err == nil {
		t.Fatal("expected error for unknown sort column")
	}
}

func TestScannerSelectsOverlappingExtentsInSortOrder(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.ds")
	indexPath := filepath.Join(dir, "data.ds.idx")
	rt := rowType(t)

	// Three extents with disjoint k-ranges: [0,4], [10,14], [20,24].
	extents := [][]int32{
		{0, 1, 2, 3, 4},
		{10, 11, 12, 13, 14},
		{20, 21, 22, 23, 24},
	}
	offsets := writeDataFile(t, dataPath, rt, extents)

	b, err := NewBuilder(rt, []string{"k"}, "k")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	for i, ks := range extents {
		e := extent.New(rt)
		kf, _ := rt.FieldByName("k")
		for _, k := range ks {
			idx := e.AppendRecord()
			if err := e.SetInt32(idx, kf, k); err != nil {
				t.Fatal(err)
			}
		}
		if err := b.AddExtent(dataPath, offsets[i], e); err != nil {
			t.Fatalf("AddExtent: %v", err)
		}
	}
	writeIndexFile(t, indexPath, b)

	// Query for k in [8,16]: should keep only the middle extent.
	sel := []Selector{{Column: "k", Min: mustGV(8), Max: mustGV(16)}}
	sc, err := NewScanner(vfs.Default(), indexPath, "Row", sel, ModeAllOverlap, "k", dsfile.DefaultReaderOptions())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer sc.Close()

	var got []int32
	for {
		e, err := sc.GetExtent()
		if err != nil {
			if errors.Is(err, operator.ErrNoMoreExtents) {
				break
			}
			t.Fatalf("GetExtent: %v", err)
		}
		kf, _ := e.Type.FieldByName("k")
		for row := 0; row < e.NRecords(); row++ {
			v, err := e.GetInt32(row, kf)
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, v)
		}
	}
	want := []int32{10, 11, 12, 13, 14}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestScannerNoOverlapKeepsNothing(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.ds")
	indexPath := filepath.Join(dir, "data.ds.idx")
	rt := rowType(t)

	extents := [][]int32{{0, 1, 2}}
	offsets := writeDataFile(t, dataPath, rt, extents)

	b, err := NewBuilder(rt, []string{"k"}, "k")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	kf, _ := rt.FieldByName("k")
	e := extent.New(rt)
	for _, k := range extents[0] {
		idx := e.AppendRecord()
		if err := e.SetInt32(idx, kf, k); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AddExtent(dataPath, offsets[0], e); err != nil {
		t.Fatalf("AddExtent: %v", err)
	}
	writeIndexFile(t, indexPath, b)

	sel := []Selector{{Column: "k", Min: mustGV(100), Max: mustGV(200)}}
	sc, err := NewScanner(vfs.Default(), indexPath, "Row", sel, ModeAllOverlap, "k", dsfile.DefaultReaderOptions())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer sc.Close()

	if _, err := sc.GetExtent(); !errors.Is(err, operator.ErrNoMoreExtents) {
		t.Fatalf("GetExtent = %v, want ErrNoMoreExtents", err)
	}
}
