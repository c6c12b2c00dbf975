package result

import (
	"errors"
	"strconv"
	"testing"
)

func TestResultBasics(t *testing.T) {
	boom := errors.New("boom")

	ok := Ok(7)
	if !ok.IsOk() {
		t.Error("Ok result reports failure")
	}
	if v, err := ok.Get(); v != 7 || err != nil {
		t.Errorf("Get = (%v, %v), want (7, nil)", v, err)
	}

	bad := Err[int](boom)
	if bad.IsOk() {
		t.Error("Err result reports success")
	}
	if !errors.Is(bad.Err(), boom) {
		t.Errorf("Err = %v, want %v", bad.Err(), boom)
	}
	if got := bad.OrElse(99); got != 99 {
		t.Errorf("OrElse = %d, want the fallback", got)
	}

	if r := Of(1, nil); !r.IsOk() {
		t.Error("Of with nil error is not ok")
	}
	if r := Of(1, boom); r.IsOk() {
		t.Error("Of with error is ok")
	}
}

func TestResultCombinators(t *testing.T) {
	boom := errors.New("boom")

	mapped := Map(Ok(2), strconv.Itoa)
	if v, _ := mapped.Get(); v != "2" {
		t.Errorf("Map value = %q, want \"2\"", v)
	}
	if Map(Err[int](boom), strconv.Itoa).IsOk() {
		t.Error("Map did not pass the error through")
	}

	chained := AndThen(Ok("3"), strconv.Atoi)
	if v, _ := chained.Get(); v != 3 {
		t.Errorf("AndThen value = %d, want 3", v)
	}
	if AndThen(Ok("nope"), strconv.Atoi).IsOk() {
		t.Error("AndThen swallowed the transformation error")
	}

	recovered := Err[int](boom).Recover(func(error) (int, error) { return 5, nil })
	if v, err := recovered.Get(); v != 5 || err != nil {
		t.Errorf("Recover = (%v, %v), want (5, nil)", v, err)
	}
	untouched := Ok(1).Recover(func(error) (int, error) { return 9, nil })
	if v, _ := untouched.Get(); v != 1 {
		t.Errorf("Recover modified a success: %d", v)
	}
}

func TestOption(t *testing.T) {
	if v, ok := Some("x").Get(); !ok || v != "x" {
		t.Errorf("Some.Get = (%q, %v), want (x, true)", v, ok)
	}
	if _, ok := None[string]().Get(); ok {
		t.Error("None reports presence")
	}
	if got := None[int]().OrElse(4); got != 4 {
		t.Errorf("None.OrElse = %d, want 4", got)
	}
}
