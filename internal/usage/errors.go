package usage

import "fmt"

// UnknownModelError is returned when a model has no price table entry
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no price table entry for model %q", e.Model)
}

// PricingError represents errors loading or applying the price table
type PricingError struct {
	Message string
	Cause   error
}

func (e *PricingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PricingError) Unwrap() error {
	return e.Cause
}

// TokenizerError represents errors loading a local tokenizer or serializing its input
type TokenizerError struct {
	Message string
	Cause   error
}

func (e *TokenizerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TokenizerError) Unwrap() error {
	return e.Cause
}
