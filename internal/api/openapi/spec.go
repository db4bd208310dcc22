// Пакет openapi — HTTP-контракт fileattach: встроенный OpenAPI документ,
// типы запросов и ответов, интерфейс сервера и chi-маршрутизация с
// привязкой параметров пути через oapi-codegen runtime.
// Изменения API вносятся сначала в openapi.yaml, затем в этот пакет.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// GetSpec загружает и валидирует встроенный OpenAPI документ.
// Документ разбирается один раз.
func GetSpec() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			specErr = fmt.Errorf("разбор OpenAPI документа: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			specErr = fmt.Errorf("валидация OpenAPI документа: %w", err)
			return
		}
		specDoc = doc
	})
	return specDoc, specErr
}

// SpecJSON возвращает OpenAPI документ в формате JSON.
func SpecJSON() ([]byte, error) {
	doc, err := GetSpec()
	if err != nil {
		return nil, err
	}
	return doc.MarshalJSON()
}
