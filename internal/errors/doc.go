// Package errors provides coded, categorized diagnostics for cells.
//
// Every contract violation or recovered failure inside a cell is reported
// as an *Error carrying:
//   - a stable code (e.g. "C001") that maps to a registered message
//   - a category (contract, listener, lifecycle, fetch, config, cli)
//   - the name of the cell that produced it
//   - the wrapped sentinel, so callers can use errors.Is
//
// # Error Codes
//
//	C001-C009  contract violations (nil listener, nil limiter, bad source)
//	C010-C019  listener failures
//	C020-C029  lifecycle hook and binding failures
//	C030-C039  remote fetch failures
//	C040-C049  configuration errors
//	C050-C059  command line errors
//
// # Usage
//
//	err := errors.New("C001").
//	    WithCell("total").
//	    Wrap(cell.ErrNilListener)
//
//	fmt.Println(err.Format())
//	// Output:
//	// WARN C001: Listener must be a function
//	//
//	//   cell: total
//	//
//	//   Hint: Pass a non-nil func(value T, source Observable[T]).
package errors
