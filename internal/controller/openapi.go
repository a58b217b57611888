package controller

import (
	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"
)

type ErrorResponse struct {
	Reason string `json:"reason"`
}

//go:embed openapi.yaml
var openapiSpec []byte

// GetSwagger загружает встроенную OpenAPI спецификацию. По ней
// OapiRequestValidator проверяет входящие запросы.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, err
	}
	return doc, nil
}
