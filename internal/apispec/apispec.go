// Package apispec cross-checks the endpoints this tool drives against a
// published OpenAPI document, so drift between the portal's contract and
// the traffic model is caught before a test run burns time.
package apispec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/example/portal/loadgen/internal/portal"
)

// Errors returned by the apispec package.
var (
	// ErrSpecLoad is returned when the OpenAPI document cannot be loaded.
	ErrSpecLoad = errors.New("apispec: loading OpenAPI document")
)

// Missing describes a driven endpoint absent from the OpenAPI document.
type Missing struct {
	// Name is the endpoint name used in metrics.
	Name string
	// Method is the HTTP method.
	Method string
	// Path is the templated request path (e.g., "/applications/{id}").
	Path string
	// Reason distinguishes a missing path from a missing operation.
	Reason string
}

func (m Missing) String() string {
	return fmt.Sprintf("%s %s (%s): %s", m.Method, m.Path, m.Name, m.Reason)
}

// VerifyFile loads an OpenAPI 3 document and reports every driven portal
// endpoint that it does not declare. An empty slice means the document
// covers the full traffic model.
func VerifyFile(path string) ([]Missing, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecLoad, err)
	}
	return Verify(doc), nil
}

// Verify checks a parsed OpenAPI document against the driven endpoints.
func Verify(doc *openapi3.T) []Missing {
	var missing []Missing

	for _, ep := range portal.Endpoints() {
		item := findPath(doc, ep.Path)
		if item == nil {
			missing = append(missing, Missing{
				Name:   ep.Name,
				Method: ep.Method,
				Path:   ep.Path,
				Reason: "path not declared",
			})
			continue
		}
		if item.GetOperation(strings.ToUpper(ep.Method)) == nil {
			missing = append(missing, Missing{
				Name:   ep.Name,
				Method: ep.Method,
				Path:   ep.Path,
				Reason: "method not declared for path",
			})
		}
	}

	return missing
}

// findPath locates a path item, tolerating template parameter renames:
// "/applications/{id}" matches "/applications/{applicationId}".
func findPath(doc *openapi3.T, path string) *openapi3.PathItem {
	if doc.Paths == nil {
		return nil
	}
	if item := doc.Paths.Find(path); item != nil {
		return item
	}

	want := templateShape(path)
	for declared, item := range doc.Paths.Map() {
		if templateShape(declared) == want {
			return item
		}
	}
	return nil
}

// templateShape normalizes template parameter names so only the path
// structure is compared.
func templateShape(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = "{}"
		}
	}
	return strings.Join(segments, "/")
}
