// Package model holds the value types shared across timegrid: the scheduling
// request sent to the solver engine, the lessons it returns, the tagged
// invocation result and the persisted run record.
package model
