// Package errors provides the structured error type used across photoflow.
// Every error carries a machine-readable code that places it in one of three
// fault classes: item-local faults isolated to one photo, configuration
// faults raised before any item is processed, and systemic faults that abort
// the whole run.
package errors
