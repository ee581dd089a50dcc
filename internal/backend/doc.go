// Package backend defines the capability through which timegrid runs the
// external solver engine, along with the terminal event every run yields.
// The process subpackage runs the real engine; the stub subpackage replays
// canned outcomes for tests.
package backend
