// Package validation checks run parameters before any item is processed.
//
// It supports struct tag validation (using the validator library) and
// programmatic validation with error collection. Both report failures as
// configuration faults carrying the offending fields in their details, so a
// bad flag or topology value ends the run with the configuration exit code.
//
// # Struct Tag Validation
//
//	type Options struct {
//	    Input     string `validate:"required"`
//	    DateStart string `validate:"omitempty,date"`
//	}
//	err := validation.Validate(opts)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("output", opts.Output).Positive("batch_size", opts.BatchSize)
//	err := v.Validate()
package validation
