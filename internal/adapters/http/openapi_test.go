package http_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/canopyview/api"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the OpenAPI specification is valid.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/streetview-ai/transform",
		"/v1/streetview-ai/prompt",
		"/v1/streetview-ai/visible-trees",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"TreePlacement",
		"TreeLocation",
		"TransformRequest",
		"TransformationResult",
		"Location",
		"Placement",
		"PromptResponse",
		"VisibleTreesResponse",
		"APIError",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPITransformContract checks the documented request defaults and result fields.
func TestOpenAPITransformContract(t *testing.T) {
	spec := loadSpec(t)

	req := spec.Components.Schemas["TransformRequest"].Value
	for _, field := range []string{"lat", "lng"} {
		found := false
		for _, r := range req.Required {
			if r == field {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s to be required", field)
		}
	}
	if fov := req.Properties["fov"].Value.Default; fov != float64(90) {
		t.Errorf("expected fov default 90, got %v", fov)
	}

	result := spec.Components.Schemas["TransformationResult"].Value
	for _, field := range []string{"original_image", "transformed_image", "location", "trees_added"} {
		if result.Properties[field] == nil {
			t.Errorf("expected result field %s", field)
		}
	}
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "Canopyview Street View AI API" {
		t.Errorf("expected title 'Canopyview Street View AI API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Fatal("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}
