package gwtypes

import "github.com/go-playground/validator/v10"

// Validate is the shared struct validator for the validate:"..." tags on
// StorageConfig, Mount and the other types in this package. A single
// instance is reused because validator.New() caches compiled tag rules
// per struct type.
var Validate = validator.New()
