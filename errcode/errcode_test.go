package errcode

import (
	"errors"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{Busy, Busy},
		{&E{C: BusInUse, Op: "claim"}, BusInUse},
		{errors.New("boom"), Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Errorf("Of(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestE_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	e := &E{C: IOError, Msg: "read failed", Err: cause}
	if e.Error() != "io_error: read failed" {
		t.Fatalf("Error() = %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Fatal("E does not unwrap to its cause")
	}
}
