// Package types provides type definitions for structured data used throughout the contract analyzer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContractType identifies the kind of contract being reviewed
type ContractType string

// Supported contract types
const (
	ContractEmploymentOffer ContractType = "employment_offer"
	ContractTOS             ContractType = "tos"
	ContractNDA             ContractType = "nda"
	ContractLease           ContractType = "lease"
	ContractOther           ContractType = "other"
)

// Label returns a human-readable name used in prompts and summaries.
func (c ContractType) Label() string {
	switch c {
	case ContractEmploymentOffer:
		return "Employment Offer"
	case ContractTOS:
		return "Terms of Service"
	case ContractNDA:
		return "Non-Disclosure Agreement"
	case ContractLease:
		return "Lease Agreement"
	default:
		return "General Contract"
	}
}

// Persona is the viewpoint of the person reviewing the contract
type Persona string

// Supported reviewer personas
const (
	PersonaIndividual Persona = "individual"
	PersonaEmployee   Persona = "employee"
	PersonaEmployer   Persona = "employer"
	PersonaConsumer   Persona = "consumer"
	PersonaBusiness   Persona = "business"
	PersonaTenant     Persona = "tenant"
	PersonaLandlord   Persona = "landlord"
	PersonaContractor Persona = "contractor"
)

// ErrEmptyContractText is returned when the contract text is blank after trimming.
var ErrEmptyContractText = errors.New("contractText must not be empty")

// AnalysisRequest is the inbound payload for one contract analysis
type AnalysisRequest struct {
	ContractText string       `json:"contractText" validate:"required"`
	ContractType ContractType `json:"contractType" validate:"required,oneof=employment_offer tos nda lease other"`
	Jurisdiction []string     `json:"jurisdiction" validate:"dive,required,max=100"`
	Persona      Persona      `json:"persona" validate:"required,oneof=individual employee employer consumer business tenant landlord contractor"`
	ModelID      string       `json:"modelId" validate:"required,max=100"`
}

var requestValidator = validator.New()

// ApplyDefaults fills optional fields the caller left empty and removes duplicate jurisdictions.
func (r *AnalysisRequest) ApplyDefaults(defaultModel string) {
	if r.ContractType == "" {
		r.ContractType = ContractOther
	}
	if r.Persona == "" {
		r.Persona = PersonaIndividual
	}
	if strings.TrimSpace(r.ModelID) == "" {
		r.ModelID = defaultModel
	}
	r.ModelID = strings.TrimSpace(r.ModelID)

	seen := make(map[string]bool, len(r.Jurisdiction))
	jurisdictions := make([]string, 0, len(r.Jurisdiction))
	for _, j := range r.Jurisdiction {
		j = strings.TrimSpace(j)
		if j == "" || seen[j] {
			continue
		}
		seen[j] = true
		jurisdictions = append(jurisdictions, j)
	}
	r.Jurisdiction = jurisdictions
}

// Validate checks the request shape. The contract text must be non-empty after trimming.
func (r *AnalysisRequest) Validate() error {
	if strings.TrimSpace(r.ContractText) == "" {
		return ErrEmptyContractText
	}
	if err := requestValidator.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %s", describeValidationErrors(err))
	}
	return nil
}

// describeValidationErrors flattens validator errors into a single readable line
func describeValidationErrors(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds maximum length %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
