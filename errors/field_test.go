package errors

import (
	"reflect"
	"testing"
)

func TestFieldErrors(t *testing.T) {
	// Built once so that results can be compared with DeepEqual.
	var (
		emptyBodyErr     = Field("BodyBytes", ErrValidation, "empty")
		negativeSeqErr   = Field("AccountSequence", ErrValidation, "negative")
		emptySignerErr   = Field("SignerAddress", ErrValidation, "empty")
		unknownSignerErr = Field("SignerAddress", ErrUnknownSigner, "cosmos1xyz")
		emptySigErr      = Field("Signature", ErrEmpty, "")
		recordErr        = Append(emptyBodyErr, negativeSeqErr)
		submissionErr    = Field("Signatures.1", Append(
			emptySignerErr,
			Append(emptySigErr, ErrInput),
		), "invalid submission")

		nestedSigErr = Field("Signature", emptySigErr, "outer")
	)

	cases := map[string]struct {
		Err   error
		Field string
		Want  []error
	}{
		"a single error found by the name": {
			Err:   emptyBodyErr,
			Field: "BodyBytes",
			Want:  []error{emptyBodyErr},
		},
		"record validation collects every field": {
			Err:   recordErr,
			Field: "AccountSequence",
			Want:  []error{negativeSeqErr},
		},
		"two errors for the same field": {
			Err:   Append(emptySignerErr, unknownSignerErr),
			Field: "SignerAddress",
			Want:  []error{emptySignerErr, unknownSignerErr},
		},
		"field can contain a multierror": {
			Err:   submissionErr,
			Field: "Signatures.1",
			Want:  []error{submissionErr},
		},
		"field inside of a multierror field (signer)": {
			Err:   submissionErr,
			Field: "SignerAddress",
			Want:  []error{emptySignerErr},
		},
		"field inside of a multierror field (signature)": {
			Err:   submissionErr,
			Field: "Signature",
			Want:  []error{emptySigErr},
		},
		"nil error returns nothing": {
			Err:   nil,
			Field: "BodyBytes",
			Want:  nil,
		},
		"error without a field": {
			Err:   ErrThresholdNotMet,
			Field: "BodyBytes",
			Want:  nil,
		},
		"error for another field": {
			Err:   Field("Memo", ErrValidation, "too long"),
			Field: "BodyBytes",
			Want:  nil,
		},
		"field is wrapped": {
			Err:   Wrap(Wrap(emptyBodyErr, "create transaction"), "handler"),
			Field: "BodyBytes",
			Want:  []error{emptyBodyErr},
		},
		"wrapped multierror field, no match": {
			Err:   Wrap(submissionErr, "submit"),
			Field: "TxHash",
			Want:  nil,
		},
		"nested field errors return the innermost field": {
			Err:   Field("Record", Field("Fee", emptyBodyErr, "fee"), "record"),
			Field: "BodyBytes",
			Want:  []error{emptyBodyErr},
		},
		"same field nested returns the outermost one": {
			Err:   nestedSigErr,
			Field: "Signature",
			Want:  []error{nestedSigErr},
		},
		"wrapped errors appended together": {
			Err: Wrap(Append(
				Wrap(emptySignerErr, "a"),
				Wrap(unknownSignerErr, "b"),
				Wrap(emptySigErr, "c"),
			), "submit"),
			Field: "SignerAddress",
			Want:  []error{emptySignerErr, unknownSignerErr},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got := FieldErrors(tc.Err, tc.Field)
			if !reflect.DeepEqual(tc.Want, got) {
				t.Logf("want: %#v", tc.Want)
				t.Logf(" got: %#v", got)
				t.Fatal("unexpected result")
			}
		})
	}
}

func TestFieldMessage(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"with description": {
			err:  Field("AccountSequence", ErrValidation, "got %d", -1),
			want: `field "AccountSequence": got -1: validation`,
		},
		"without description": {
			err:  AppendField(nil, "Signature", ErrEmpty),
			want: `field "Signature": value is empty`,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
	if err := AppendField(nil, "Signature", nil); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
}
