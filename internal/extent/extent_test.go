package extent

import (
	"testing"

	"github.com/aalhour/extentstore/internal/typeregistry"
)

func testType(t *testing.T) *typeregistry.ExtentType {
	t.Helper()
	et, err := typeregistry.NewExtentType("ns", "T", 1, 0, []typeregistry.Field{
		{Name: "k", Type: typeregistry.FieldInt32},
		{Name: "big", Type: typeregistry.FieldInt64},
		{Name: "flag", Type: typeregistry.FieldBool},
		{Name: "tag", Type: typeregistry.FieldByte},
		{Name: "name", Type: typeregistry.FieldVariable32},
		{Name: "opt", Type: typeregistry.FieldInt32, Nullable: true},
	})
	if err != nil {
		t.Fatalf("NewExtentType: %v", err)
	}
	return et
}

func TestExtentFixedFieldRoundTrip(t *testing.T) {
	et := testType(t)
	e := New(et)
	idx := e.AppendRecord()

	k, _ := et.FieldByName("k")
	big, _ := et.FieldByName("big")
	flag, _ := et.FieldByName("flag")
	tag, _ := et.FieldByName("tag")

	if err := e.SetInt32(idx, k, -42); err != nil {
		t.Fatal(err)
	}
	if err := e.SetInt64(idx, big, 1<<40); err != nil {
		t.Fatal(err)
	}
	if err := e.SetBool(idx, flag, true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetByte(idx, tag, 0xAB); err != nil {
		t.Fatal(err)
	}

	gotK, _ := e.GetInt32(idx, k)
	gotBig, _ := e.GetInt64(idx, big)
	gotFlag, _ := e.GetBool(idx, flag)
	gotTag, _ := e.GetByte(idx, tag)

	if gotK != -42 || gotBig != 1<<40 || !gotFlag || gotTag != 0xAB {
		t.Errorf("got k=%d big=%d flag=%v tag=%x", gotK, gotBig, gotFlag, gotTag)
	}
}

func TestExtentVariable32RoundTrip(t *testing.T) {
	et := testType(t)
	e := New(et)
	name, _ := et.FieldByName("name")

	i0 := e.AppendRecord()
	i1 := e.AppendRecord()

	if err := e.SetVariable32(i0, name, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVariable32(i1, name, nil); err != nil {
		t.Fatal(err)
	}

	got0, err := e.GetVariable32(i0, name)
	if err != nil || string(got0) != "hello" {
		t.Errorf("GetVariable32(i0) = %q, %v", got0, err)
	}
	got1, err := e.GetVariable32(i1, name)
	if err != nil || len(got1) != 0 {
		t.Errorf("GetVariable32(i1) = %q, %v, want empty", got1, err)
	}
}

func TestExtentNullability(t *testing.T) {
	et := testType(t)
	e := New(et)
	opt, _ := et.FieldByName("opt")
	idx := e.AppendRecord()

	null, err := e.IsNull(idx, opt)
	if err != nil || null {
		t.Errorf("new record should default to non-null, got %v, %v", null, err)
	}

	if err := e.SetNull(idx, opt, true); err != nil {
		t.Fatal(err)
	}
	null, _ = e.IsNull(idx, opt)
	if !null {
		t.Error("expected field to be null after SetNull(true)")
	}
}

func TestExtentNRecords(t *testing.T) {
	et := testType(t)
	e := New(et)
	if e.NRecords() != 0 {
		t.Fatalf("new extent should have 0 records, got %d", e.NRecords())
	}
	for range 5 {
		e.AppendRecord()
	}
	if e.NRecords() != 5 {
		t.Errorf("NRecords() = %d, want 5", e.NRecords())
	}
}

func TestExtentRecordOutOfRange(t *testing.T) {
	et := testType(t)
	e := New(et)
	k, _ := et.FieldByName("k")
	if _, err := e.GetInt32(0, k); err == nil {
		t.Error("expected out-of-range error on empty extent")
	}
}
