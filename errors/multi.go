package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If no errors are provided or all provided errors are nil, this function
// returns nil. A single non nil error is returned as it is.
func Append(errs ...error) error {
	var res multiErr
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		// Flatten so that nested appends produce a flat list.
		if m, ok := e.(multiErr); ok {
			res = append(res, m...)
			continue
		}
		res = append(res, e)
	}

	switch len(res) {
	case 0:
		return nil
	case 1:
		return res[0]
	default:
		return res
	}
}

// multiErr represents a set of errors that occurred together.
type multiErr []error

func (m multiErr) Error() string {
	points := make([]string, len(m))
	for i, err := range m {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(m), strings.Join(points, "\n\t"))
}

// Unpack returns all errors that this group consists of.
func (m multiErr) Unpack() []error {
	return m
}

// Code returns the code of the first error, consistent with a fail-fast
// approach.
func (m multiErr) Code() uint32 {
	if len(m) == 0 {
		return 0
	}
	return Code(m[0])
}

// unpacker is implemented by an error that is a collection of errors.
type unpacker interface {
	Unpack() []error
}
