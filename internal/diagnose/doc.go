// Package diagnose turns the output of a finished engine run into a typed
// result. Successful runs are decoded as JSON, with recovery of a final
// answer printed after incidental logging. Failed runs are classified from
// their diagnostic text: structured log records are preferred, then an
// ordered table of known message templates extracts the offending entity so
// the UI can send the user back to the right configuration step.
//
// Nothing in this package panics on bad input; every failure becomes a
// *model.ClassifiedError whose RawDiagnostic keeps the offending text for
// operators.
package diagnose
