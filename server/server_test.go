package server

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/vfs"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := New(Options{WorkingDir: filepath.Join(t.TempDir(), "ds"), FS: vfs.Default()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHandlerPingHasTable(t *testing.T) {
	h := newHandler(t)
	h.Ping()
	if h.HasTable("missing") {
		t.Fatalf("HasTable(missing) = true, want false")
	}
}

func TestImportDataAndGetTableData(t *testing.T) {
	h := newHandler(t)
	xmlDesc := `<ExtentType name="Row" namespace="ns" version.major="1" version.minor="0">
  <field type="int32" name="k" />
  <field type="variable32" name="v" />
</ExtentType>`
	rows := [][]string{
		{"1", "one"},
		{"2", "two"},
		{"3", "three"},
	}
	if err := h.ImportData("t1", xmlDesc, rows); err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	if !h.HasTable("t1") {
		t.Fatalf("HasTable(t1) = false after ImportData")
	}

	data, err := h.GetTableData("t1", 10, "")
	if err != nil {
		t.Fatalf("GetTableData: %v", err)
	}
	if len(data.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(data.Rows))
	}
	if data.MoreRows {
		t.Fatalf("MoreRows = true, want false")
	}
	if data.Rows[1][1] != "two" {
		t.Fatalf("row 1 col 1 = %q, want %q", data.Rows[1][1], "two")
	}

	paged, err := h.GetTableData("t1", 2, "")
	if err != nil {
		t.Fatalf("GetTableData paged: %v", err)
	}
	if len(paged.Rows) != 2 || !paged.MoreRows {
		t.Fatalf("paged = %d rows, moreRows=%v, want 2 rows, moreRows=true", len(paged.Rows), paged.MoreRows)
	}
}

func TestSelectRowsAndProjectTable(t *testing.T) {
	h := newHandler(t)
	xmlDesc := `<ExtentType name="Row" namespace="ns" version.major="1" version.minor="0">
  <field type="int32" name="k" />
  <field type="variable32" name="v" />
</ExtentType>`
	if err := h.ImportData("src", xmlDesc, [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}); err != nil {
		t.Fatalf("ImportData: %v", err)
	}

	if err := h.SelectRows("src", "filtered", "k > 1"); err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	data, err := h.GetTableData("filtered", 10, "")
	if err != nil {
		t.Fatalf("GetTableData: %v", err)
	}
	if len(data.Rows) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(data.Rows))
	}

	if err := h.ProjectTable("src", "justK", []string{"k"}); err != nil {
		t.Fatalf("ProjectTable: %v", err)
	}
	pdata, err := h.GetTableData("justK", 10, "")
	if err != nil {
		t.Fatalf("GetTableData(justK): %v", err)
	}
	if len(pdata.Columns) != 1 || pdata.Columns[0].Name != "k" {
		t.Fatalf("justK columns = %+v, want single k column", pdata.Columns)
	}
}

func TestMergeTables(t *testing.T) {
	h := newHandler(t)
	xmlDesc := `<ExtentType name="Row" namespace="ns" version.major="1" version.minor="0">
  <field type="int32" name="k" />
  <field type="variable32" name="v" />
</ExtentType>`
	if err := h.ImportData("a", xmlDesc, [][]string{{"1", "a1"}}); err != nil {
		t.Fatalf("ImportData a: %v", err)
	}
	if err := h.ImportData("b", xmlDesc, [][]string{{"2", "b1"}}); err != nil {
		t.Fatalf("ImportData b: %v", err)
	}
	if err := h.MergeTables([]string{"a", "b"}, "merged"); err != nil {
		t.Fatalf("MergeTables: %v", err)
	}
	data, err := h.GetTableData("merged", 10, "")
	if err != nil {
		t.Fatalf("GetTableData: %v", err)
	}
	if len(data.Rows) != 2 {
		t.Fatalf("merged rows = %d, want 2", len(data.Rows))
	}
}

func TestSortTable(t *testing.T) {
	h := newHandler(t)
	xmlDesc := `<ExtentType name="Row" namespace="ns" version.major="1" version.minor="0">
  <field type="int32" name="k" />
  <field type="variable32" name="v" />
</ExtentType>`
	if err := h.ImportData("unsorted", xmlDesc, [][]string{{"3", "c"}, {"1", "a"}, {"2", "b"}}); err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	if err := h.SortTable("unsorted", "sorted", []operator.SortColumn{{Name: "k"}}); err != nil {
		t.Fatalf("SortTable: %v", err)
	}
	data, err := h.GetTableData("sorted", 10, "")
	if err != nil {
		t.Fatalf("GetTableData: %v", err)
	}
	want := []string{"1", "2", "3"}
	for i, row := range data.Rows {
		if row[0] != want[i] {
			t.Fatalf("row %d k = %q, want %q", i, row[0], want[i])
		}
	}
}

func TestInvalidTableName(t *testing.T) {
	h := newHandler(t)
	err := h.ImportData("bad/name", `<ExtentType name="Row" namespace="ns" version.major="1" version.minor="0"><field type="int32" name="k" /></ExtentType>`, nil)
	if err == nil {
		t.Fatalf("ImportData with bad table name: want error, got nil")
	}
	var ite *InvalidTableName
	if !errors.As(err, &ite) {
		t.Fatalf("error = %v, want *InvalidTableName", err)
	}
}
