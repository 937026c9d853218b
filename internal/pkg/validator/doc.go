// Package validator validates request and domain structs declared with
// `validate` struct tags.
//
// Business code depends on the Validator interface; V10Validator is the
// go-playground/validator v10 implementation.
package validator
