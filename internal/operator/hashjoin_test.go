package operator

import (
	"errors"
	"testing"

	"github.com/aalhour/extentstore/internal/extent"
)

func TestHashJoinMatchesOnEqualityKey(t *testing.T) {
	aType := intRowType(t, "A", "id", "val")
	bType := intRowType(t, "B", "id", "other")

	aExt := extent.New(aType)
	afID, _ := aType.FieldByName("id")
	afVal, _ := aType.FieldByName("val")
	for i, id := range []int32{1, 2, 3} {
		idx := aExt.AppendRecord()
		_ = aExt.SetInt32(idx, afID, id)
		_ = aExt.SetInt32(idx, afVal, []int32{10, 20, 30}[i])
	}

	bExt := extent.New(bType)
	bfID, _ := bType.FieldByName("id")
	bfOther, _ := bType.FieldByName("other")
	bIDs := []int32{2, 3, 3, 9}
	bOthers := []int32{200, 300, 301, 900}
	for i := range bIDs {
		idx := bExt.AppendRecord()
		_ = bExt.SetInt32(idx, bfID, bIDs[i])
		_ = bExt.SetInt32(idx, bfOther, bOthers[i])
	}

	hj := NewHashJoin(
		NewSliceSource(aExt), NewSliceSource(bExt), 0,
		map[string]string{"id": "id"},
		map[string]string{"a.id": "joinid", "a.val": "aval", "b.other": "bother"},
	)

	out, err := hj.GetExtent()
	if err != nil {
		t.Fatalf("GetExtent: %v", err)
	}
	if out.NRecords() != 3 {
		t.Fatalf("got %d rows, want 3", out.NRecords())
	}
	jf, _ := out.Type.FieldByName("joinid")
	vf, _ := out.Type.FieldByName("aval")
	ofld, _ := out.Type.FieldByName("bother")
	wantJoin := []int32{2, 3, 3}
	wantVal := []int32{20, 30, 30}
	wantOther := []int32{200, 300, 301}
	for row := 0; row < out.NRecords(); row++ {
		j, _ := out.GetInt32(row, jf)
		v, _ := out.GetInt32(row, vf)
		o, _ := out.GetInt32(row, ofld)
		if j != wantJoin[row] || v != wantVal[row] || o != wantOther[row] {
			t.Fatalf("row %d = (%d,%d,%d), want (%d,%d,%d)", row, j, v, o, wantJoin[row], wantVal[row], wantOther[row])
		}
	}
}

func TestHashJoinExceedsMaxARows(t *testing.T) {
	aType := intRowType(t, "A", "id")
	aExt := buildIntExtent(t, aType, "id", []int32{1, 2, 3})
	bType := intRowType(t, "B", "id")
	bExt := buildIntExtent(t, bType, "id", []int32{1})

	hj := NewHashJoin(NewSliceSource(aExt), NewSliceSource(bExt), 2,
		map[string]string{"id": "id"}, map[string]string{"a.id": "id"})
	if _, err := hj.GetExtent(); !errors.Is(err, ErrTooManyLeftRows) {
		t.Fatalf("GetExtent = %v, want ErrTooManyLeftRows", err)
	}
}
