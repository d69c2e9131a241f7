package gvalue

import (
	"testing"

	"github.com/aalhour/extentstore/internal/extent"
)

func rowSeries(t *testing.T, id int64, score int32, name string) *Series {
	t.Helper()
	typ := testType(t)
	e := extent.New(typ)
	s := NewSeries(typ)
	s.SetExtent(e)
	s.NewRecord()
	idF, _ := NewField(s, "id")
	idF.Set(FromInt64(id))
	flagF, _ := NewField(s, "flag")
	flagF.Set(FromBool(true))
	scoreF, _ := NewField(s, "score")
	scoreF.Set(FromInt32(score))
	nameF, _ := NewField(s, "name")
	nameF.Set(FromVariable32([]byte(name)))
	return s
}

func evalBool(t *testing.T, s *Series, expr string) bool {
	t.Helper()
	e, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	c, err := e.Compile(s)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	got, err := c.EvalBool()
	if err != nil {
		t.Fatalf("EvalBool(%q): %v", expr, err)
	}
	return got
}

func TestExprComparisons(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	cases := map[string]bool{
		"id == 10":             true,
		"id != 10":              false,
		"id < 20":               true,
		"id > 20":               false,
		"score <= 5":            true,
		"score >= 6":            false,
		"name == \"abc\"":       true,
		"name != \"abc\"":       false,
	}
	for expr, want := range cases {
		if got := evalBool(t, s, expr); got != want {
			t.Errorf("%q = %v, want %v", expr, got, want)
		}
	}
}

func TestExprArithmetic(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	if got := evalBool(t, s, "id + score == 15"); !got {
		t.Error("expected id + score == 15")
	}
	if got := evalBool(t, s, "id - score == 5"); !got {
		t.Error("expected id - score == 5")
	}
	if got := evalBool(t, s, "score * 2 == 10"); !got {
		t.Error("expected score * 2 == 10")
	}
	if got := evalBool(t, s, "id / 2 == 5"); !got {
		t.Error("expected id / 2 == 5")
	}
	if got := evalBool(t, s, "-score == -5"); !got {
		t.Error("expected -score == -5")
	}
}

func TestExprLogical(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	if !evalBool(t, s, "id == 10 && score == 5") {
		t.Error("expected && to be true")
	}
	if evalBool(t, s, "id == 10 && score == 6") {
		t.Error("expected && to be false")
	}
	if !evalBool(t, s, "id == 1 || score == 5") {
		t.Error("expected || to be true")
	}
	if !evalBool(t, s, "!(id == 1)") {
		t.Error("expected negation to be true")
	}
	if !evalBool(t, s, "flag") {
		t.Error("expected bare bool field reference to evaluate true")
	}
}

func TestExprPrecedenceAndParens(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	if !evalBool(t, s, "id == 5 + 5 && (score == 5 || score == 6)") {
		t.Error("expected combined precedence expression to be true")
	}
}

func TestExprUnknownField(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	e, err := Parse("bogus == 1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Compile(s); err == nil {
		t.Fatal("expected compile error for unknown field")
	}
}

func TestExprDivisionByZero(t *testing.T) {
	s := rowSeries(t, 10, 5, "abc")
	e, err := Parse("id / 0 == 0")
	if err != nil {
		t.Fatal(err)
	}
	c, err := e.Compile(s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.EvalBool(); err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestExprTrailingGarbage(t *testing.T) {
	if _, err := Parse("id == 1 )"); err == nil {
		t.Fatal("expected parse error for trailing token")
	}
}
