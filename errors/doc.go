/*
Package errors implements custom error interfaces for cosign.

The idea is to reuse as many errors from this package as possible and define
custom package errors when absolutely necessary. Errors that describe the
multisig coordination domain (unknown signer, already broadcast, node
rejection, ...) are declared here as well, because every layer from the store
up to the HTTP API has to recognize them.

If you want to register a custom error - use Register(code, description).
For reusing errors - use Errxxx.New and Errxxx.Newf, or Wrap(Errxxx, "...").
Code allows to distinguish types of errors on the client side and act
accordingly. HTTPStatus translates a code into a response status.

There is also support for stacktraces. Please ensure you create the custom
error using ErrXyz.New("...") or errors.Wrap(err, "...") at the point of
creation to ensure we attach a stacktrace. If you wrap multiple times, we only
record the first wrap with the stacktrace. (And don't do this as a global
`var ErrFoo = errors.ErrInternal.New("foo")` or you will get a useless
stacktrace).

Once you have an error, you can use `fmt.Printf/Sprintf` to get more context
for the error

	%s is just the error message
	%+v is the full stack trace
	%v appends a compressed [filename:line] where the error was created
*/
package errors
