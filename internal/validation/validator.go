package validation

import "github.com/rendis/integra/pkg/schema"

// Validator checks integration requests before they reach the engine.
// Uses JSON Schema Draft 2020-12 for document structure.
type Validator interface {
	Validate(req *schema.IntegrationRequest) *schema.ValidationResult
	Decode(data []byte) (*schema.IntegrationRequest, *schema.ValidationResult)
}
