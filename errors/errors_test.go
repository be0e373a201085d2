package errors

import (
	stdlib "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestCause(t *testing.T) {
	std := stdlib.New("this is a stdlib error")

	cases := map[string]struct {
		err  error
		root error
	}{
		"Errors are self-causing": {
			err:  ErrNotFound,
			root: ErrNotFound,
		},
		"Wrap reveals root cause": {
			err:  Wrap(ErrNotFound, "foo"),
			root: ErrNotFound,
		},
		"Cause works for stderr as root": {
			err:  Wrap(std, "Some helpful text"),
			root: std,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := errors.Cause(tc.err); got != tc.root {
				t.Fatal("unexpected result")
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		a      *Error
		b      error
		wantIs bool
	}{
		"instance of the same error": {
			a:      ErrNotFound,
			b:      ErrNotFound,
			wantIs: true,
		},
		"two different coded errors": {
			a:      ErrNotFound,
			b:      ErrModel,
			wantIs: false,
		},
		"successful comparison to a wrapped error": {
			a:      ErrUnknownSigner,
			b:      Wrap(ErrUnknownSigner, "cosmos1xyz"),
			wantIs: true,
		},
		"comparison through a field error": {
			a:      ErrValidation,
			b:      Field("BodyBytes", ErrValidation, "required"),
			wantIs: true,
		},
		"unsuccessful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      errors.Wrap(ErrInput, "too big"),
			wantIs: false,
		},
		"not equal to stdlib error": {
			a:      ErrNotFound,
			b:      fmt.Errorf("stdlib error"),
			wantIs: false,
		},
		"nil is nil": {
			a:      nil,
			b:      nil,
			wantIs: true,
		},
		"nil is any error nil": {
			a:      nil,
			b:      (*customError)(nil),
			wantIs: true,
		},
		"nil is not not-nil": {
			a:      nil,
			b:      ErrNotFound,
			wantIs: false,
		},
		"not-nil is not nil": {
			a:      ErrNotFound,
			b:      nil,
			wantIs: false,
		},
		"appended errors with a match": {
			a:      ErrAlreadyBroadcast,
			b:      Append(ErrState, Wrap(ErrAlreadyBroadcast, "tx 1")),
			wantIs: true,
		},
		"appended errors without a match": {
			a:      ErrAlreadyBroadcast,
			b:      Append(ErrState, ErrEmpty),
			wantIs: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.a.Is(tc.b); got != tc.wantIs {
				t.Fatalf("unexpected result - got:%v want: %v", got, tc.wantIs)
			}
		})
	}
}

type customError struct {
}

func (customError) Error() string {
	return "custom error"
}

func TestWrapEmpty(t *testing.T) {
	if err := Wrap(nil, "wrapping <nil>"); err != nil {
		t.Fatal(err)
	}
}

func TestStdlibCompatibility(t *testing.T) {
	err := Wrapf(ErrNodeRejected, "code %d: %s", 32, "account sequence mismatch")
	if !stdlib.Is(err, ErrNodeRejected) {
		t.Fatal("stdlib errors.Is must find the root error")
	}
	want := "code 32: account sequence mismatch: node rejected"
	if got := err.Error(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		want uint32
	}{
		"nil":             {err: nil, want: 0},
		"root":            {err: ErrInvalidThreshold, want: 100},
		"wrapped":         {err: Wrap(ErrAlreadyInProgress, "tx"), want: 105},
		"stdlib":          {err: fmt.Errorf("boom"), want: 1},
		"wrapped stdlib":  {err: Wrap(fmt.Errorf("boom"), "outer"), want: 1},
		"appended errors": {err: Append(ErrEmpty, ErrInput), want: 9},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := Code(tc.err); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":                  {err: nil, want: http.StatusOK},
		"not found":            {err: Wrap(ErrTransactionNotFound, "id"), want: http.StatusNotFound},
		"concurrent":           {err: ErrAlreadyInProgress, want: http.StatusConflict},
		"already broadcast":    {err: ErrAlreadyBroadcast, want: http.StatusConflict},
		"unknown signer":       {err: ErrUnknownSigner, want: http.StatusForbidden},
		"bad threshold":        {err: ErrInvalidThreshold, want: http.StatusBadRequest},
		"node down":            {err: ErrNodeUnavailable, want: http.StatusBadGateway},
		"inconsistent":         {err: ErrInconsistentSignedPayload, want: http.StatusUnprocessableEntity},
		"cancelled store call": {err: Wrap(ErrTimeout, "context canceled"), want: http.StatusGatewayTimeout},
		"invalid field":        {err: Field("BodyBytes", ErrValidation, "empty"), want: http.StatusBadRequest},
		"duplicate identity":   {err: ErrDuplicate, want: http.StatusConflict},
		"unregistered failure": {err: fmt.Errorf("disk"), want: http.StatusInternalServerError},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	internal := fmt.Errorf("connection refused by 10.0.0.3")
	if got := Redact(internal, false); Code(got) != 1 || got.Error() != "internal" {
		t.Fatalf("internal error must be redacted, got %q", got)
	}
	if got := Redact(internal, true); got != internal {
		t.Fatal("debug mode must not redact")
	}
	domain := Wrap(ErrUnknownSigner, "cosmos1abc")
	if got := Redact(domain, false); got != domain {
		t.Fatal("registered errors must not be redacted")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	Register(ErrNotFound.Code(), "another not found")
}

func TestAppend(t *testing.T) {
	if err := Append(nil, nil); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
	if err := Append(nil, ErrEmpty); err != ErrEmpty {
		t.Fatalf("single error must be returned as it is, got %v", err)
	}
	err := Append(ErrEmpty, Append(ErrInput, ErrState))
	u, ok := err.(unpacker)
	if !ok {
		t.Fatalf("want a group of errors, got %T", err)
	}
	if n := len(u.Unpack()); n != 3 {
		t.Fatalf("want a flat list of 3 errors, got %d", n)
	}
}
