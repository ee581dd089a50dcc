// Package process runs the solver engine as a child process. It resolves the
// engine entry point, picks an interpreter for script entry points, streams
// the request to stdin, drains stdout and stderr while the child runs and
// races the child's exit against the run deadline so that exactly one
// terminal event is produced and the child is always reaped.
package process
