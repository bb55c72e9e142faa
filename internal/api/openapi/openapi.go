// Пакет openapi — встроенный OpenAPI 3 контракт Blob Store.
// Документ загружается и валидируется kin-openapi при старте
// и отдаётся на /docs/openapi.json.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// Load загружает и валидирует встроенный OpenAPI документ.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки OpenAPI документа: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI документ невалиден: %w", err)
	}
	return doc, nil
}

// JSON возвращает OpenAPI документ в JSON для отдачи клиентам.
func JSON(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации OpenAPI документа: %w", err)
	}
	return data, nil
}
