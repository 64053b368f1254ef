// Пакет openapi — встроенный OpenAPI-документ HTTP-контракта rtf-converter.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var document []byte

// ContentType — тип ответа GET /openapi.yaml.
const ContentType = "application/yaml"

// Document возвращает исходный YAML документа.
func Document() []byte {
	return document
}

// Load разбирает и проверяет документ.
// Вызывается при старте, чтобы битый контракт не попал в сборку незамеченным.
func Load(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI-документа: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI-документ некорректен: %w", err)
	}
	return doc, nil
}
