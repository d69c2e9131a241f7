package gvalue

import (
	"testing"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

func testType(t *testing.T) *typeregistry.ExtentType {
	t.Helper()
	typ, err := typeregistry.NewExtentType("test", "Row", 1, 0, []typeregistry.Field{
		{Name: "id", Type: typeregistry.FieldInt64},
		{Name: "flag", Type: typeregistry.FieldBool},
		{Name: "score", Type: typeregistry.FieldInt32, Nullable: true},
		{Name: "name", Type: typeregistry.FieldVariable32},
	})
	if err != nil {
		t.Fatalf("NewExtentType: %v", err)
	}
	return typ
}

func TestFieldGetSetRoundTrip(t *testing.T) {
	typ := testType(t)
	e := extent.New(typ)
	s := NewSeries(typ)
	s.SetExtent(e)
	s.NewRecord()

	idF, err := NewField(s, "id")
	if err != nil {
		t.Fatal(err)
	}
	flagF, err := NewField(s, "flag")
	if err != nil {
		t.Fatal(err)
	}
	scoreF, err := NewField(s, "score")
	if err != nil {
		t.Fatal(err)
	}
	nameF, err := NewField(s, "name")
	if err != nil {
		t.Fatal(err)
	}

	if err := idF.Set(FromInt64(42)); err != nil {
		t.Fatal(err)
	}
	if err := flagF.Set(FromBool(true)); err != nil {
		t.Fatal(err)
	}
	if err := scoreF.Set(Null()); err != nil {
		t.Fatal(err)
	}
	if err := nameF.Set(FromVariable32([]byte("hello"))); err != nil {
		t.Fatal(err)
	}

	if v, err := idF.Get(); err != nil || v.Int64() != 42 {
		t.Errorf("id = %v, %v, want 42", v, err)
	}
	if v, err := flagF.Get(); err != nil || !v.Bool() {
		t.Errorf("flag = %v, %v, want true", v, err)
	}
	if v, err := scoreF.Get(); err != nil || !v.IsNull() {
		t.Errorf("score = %v, %v, want null", v, err)
	}
	if v, err := nameF.Get(); err != nil || string(v.Variable32()) != "hello" {
		t.Errorf("name = %v, %v, want hello", v, err)
	}
}

func TestFieldNotFound(t *testing.T) {
	typ := testType(t)
	s := NewSeries(typ)
	s.SetExtent(extent.New(typ))
	s.NewRecord()
	if _, err := NewField(s, "nope"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestFieldSetRejectsNullOnNonNullable(t *testing.T) {
	typ := testType(t)
	s := NewSeries(typ)
	s.SetExtent(extent.New(typ))
	s.NewRecord()
	idF, _ := NewField(s, "id")
	if err := idF.Set(Null()); err == nil {
		t.Fatal("expected error setting null on non-nullable field")
	}
}

func TestGetRowAcrossExtents(t *testing.T) {
	typ := testType(t)
	e := extent.New(typ)
	s := NewSeries(typ)
	s.SetExtent(e)

	for i := 0; i < 3; i++ {
		s.NewRecord()
		idF, _ := NewField(s, "id")
		if err := idF.Set(FromInt64(int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	f, _ := typ.FieldByName("id")
	v, err := GetRow(e, 1, f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int64() != 1 {
		t.Errorf("GetRow(1) = %d, want 1", v.Int64())
	}
}

func TestSeriesMoreAndNext(t *testing.T) {
	typ := testType(t)
	e := extent.New(typ)
	s := NewSeries(typ)
	s.SetExtent(e)
	if s.More() {
		t.Fatal("expected no rows on empty extent")
	}
	s.NewRecord()
	s.NewRecord()
	s.SetExtent(e) // reset cursor to row 0 without losing data
	count := 0
	for s.More() {
		count++
		s.Next()
	}
	if count != 2 {
		t.Errorf("iterated %d rows, want 2", count)
	}
}
