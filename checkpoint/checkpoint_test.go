package checkpoint

import (
	"errors"
	"io"
	"strings"
	"testing"
)

var (
	errSentinel = errors.New("sentinel")
	errCause    = errors.New("cause")
)

type kindError struct{ kind string }

func (k *kindError) Error() string { return k.kind }

func TestFrom(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantNil bool
		wantIs  error
	}{
		{name: "nil stays nil", err: nil, wantNil: true},
		{name: "io.EOF is passed through", err: io.EOF, wantIs: io.EOF},
		{name: "io.ErrUnexpectedEOF is passed through", err: io.ErrUnexpectedEOF, wantIs: io.ErrUnexpectedEOF},
		{name: "other errors are decorated", err: errCause, wantIs: errCause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if (got == nil) != tt.wantNil {
				t.Fatalf("From() = %v, wantNil %v", got, tt.wantNil)
			}
			if tt.wantIs != nil && !errors.Is(got, tt.wantIs) {
				t.Errorf("From() = %v, want errors.Is(%v)", got, tt.wantIs)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, errSentinel) != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrap(io.EOF, errSentinel) != io.EOF {
		t.Error("Wrap(io.EOF) should return io.EOF")
	}

	err := Wrap(errCause, errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Errorf("Wrap() = %v, want it to match the sentinel", err)
	}
	if !errors.Is(err, errCause) {
		t.Errorf("Wrap() = %v, want it to match the cause", err)
	}
	if errors.Unwrap(err) != errCause {
		t.Errorf("errors.Unwrap(Wrap()) = %v, want %v", errors.Unwrap(err), errCause)
	}
	if !strings.Contains(err.Error(), "checkpoint_test.go") {
		t.Errorf("Wrap().Error() = %q, want caller location", err.Error())
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errCause, errSentinel, "sector %d", 42)
	if got, want := err.Error(), "sentinel: sector 42: cause"; !strings.HasPrefix(got, want) {
		t.Errorf("Wrapf().Error() = %q, want prefix %q", got, want)
	}
}

func TestNew(t *testing.T) {
	err := New(errSentinel, "bad value %#x", 0xfff7)
	if !errors.Is(err, errSentinel) {
		t.Errorf("New() = %v, want it to match the sentinel", err)
	}
	if !strings.Contains(err.Error(), "bad value 0xfff7") {
		t.Errorf("New().Error() = %q, want the formatted detail", err.Error())
	}
}

func TestAs(t *testing.T) {
	err := Wrap(errCause, &kindError{kind: "corrupt"})

	var target *kindError
	if !errors.As(err, &target) {
		t.Fatalf("errors.As() did not find the sentinel in %v", err)
	}
	if target.kind != "corrupt" {
		t.Errorf("target.kind = %q, want %q", target.kind, "corrupt")
	}
}

func TestNestedCheckpoints(t *testing.T) {
	inner := Wrap(errCause, errSentinel)
	outer := From(inner)

	if !errors.Is(outer, errSentinel) {
		t.Errorf("outer checkpoint lost the inner sentinel: %v", outer)
	}
	if !errors.Is(outer, errCause) {
		t.Errorf("outer checkpoint lost the cause: %v", outer)
	}
}
