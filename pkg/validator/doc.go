// Package validator provides small composable validation rules for request
// handling.
//
// Each helper constructs a Rule pairing a boolean Check with a field-level
// error. Rules are evaluated with Apply, which aggregates failures into a
// ValidationErrors slice implementing the error interface, so a handler can
// report every invalid field in one pass.
//
// # Usage
//
//	err := validator.Apply(
//	    validator.RequiredString("name", req.Name),
//	    validator.MaxLenString("name", req.Name, 200),
//	    validator.Between("last_n", req.LastN, 1, 100),
//	)
//
// The package is stateless and goroutine-safe. Use ExtractValidationErrors
// to recover field details from a wrapped error.
package validator
