package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"lat":     &graphql.Field{Type: graphql.Float},
			"lng":     &graphql.Field{Type: graphql.Float},
			"heading": &graphql.Field{Type: graphql.Float},
			"pitch":   &graphql.Field{Type: graphql.Float},
		},
	})

	placementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Placement",
		Fields: graphql.Fields{
			"index":            &graphql.Field{Type: graphql.Int},
			"species":          &graphql.Field{Type: graphql.String},
			"relative_bearing": &graphql.Field{Type: graphql.Float},
			"position":         &graphql.Field{Type: graphql.String},
			"size":             &graphql.Field{Type: graphql.String},
			"distance":         &graphql.Field{Type: graphql.Float},
			"description":      &graphql.Field{Type: graphql.String},
		},
	})

	treePlacementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TreePlacement",
		Fields: graphql.Fields{
			"species":  &graphql.Field{Type: graphql.String},
			"bearing":  &graphql.Field{Type: graphql.Float},
			"distance": &graphql.Field{Type: graphql.Float},
			"lat":      &graphql.Field{Type: graphql.Float},
			"lng":      &graphql.Field{Type: graphql.Float},
		},
	})

	promptType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PromptPreview",
		Fields: graphql.Fields{
			"placements": &graphql.Field{Type: graphql.NewList(placementType)},
			"prompt":     &graphql.Field{Type: graphql.String},
		},
	})

	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TransformationResult",
		Fields: graphql.Fields{
			"original_image":    &graphql.Field{Type: graphql.String},
			"transformed_image": &graphql.Field{Type: graphql.String},
			"location":          &graphql.Field{Type: locationType},
			"trees_added":       &graphql.Field{Type: graphql.Int},
		},
	})

	treeInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "TreeInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"species":  &graphql.InputObjectFieldConfig{Type: graphql.String, DefaultValue: ""},
			"bearing":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"distance": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lat":      &graphql.InputObjectFieldConfig{Type: graphql.Float, DefaultValue: 0.0},
			"lng":      &graphql.InputObjectFieldConfig{Type: graphql.Float, DefaultValue: 0.0},
		},
	})

	treeLocationInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "TreeLocationInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"species": &graphql.InputObjectFieldConfig{Type: graphql.String, DefaultValue: ""},
			"lat":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"placements": &graphql.Field{
				Type:        promptType,
				Description: "Describe tree placements and the generation prompt for a heading",
				Args: graphql.FieldConfigArgument{
					"heading": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"trees":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(treeInput)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					heading := p.Args["heading"].(float64)
					trees := treePlacementsArg(p.Args["trees"])
					if len(trees) == 0 {
						return nil, errors.New("at least one tree is required")
					}
					placements, prompt := usecases.PromptFor(heading, trees)
					return PromptResponse{Placements: placements, Prompt: prompt}, nil
				},
			},
			"visibleTrees": &graphql.Field{
				Type:        graphql.NewList(treePlacementType),
				Description: "Trees within the camera's view from a viewpoint",
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"heading": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"trees":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(treeLocationInput)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					vp := domain.Viewpoint{
						Lat:     p.Args["lat"].(float64),
						Lng:     p.Args["lng"].(float64),
						Heading: p.Args["heading"].(float64),
					}
					return deps.Visibility.VisibleTrees(vp, treeLocationsArg(p.Args["trees"])), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"transform": &graphql.Field{
				Type:        resultType,
				Description: "Fetch a Street View frame and composite the given trees onto it",
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"heading": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"pitch":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"fov":     &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: DefaultFOV},
					"trees":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(treeInput))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					vp := domain.Viewpoint{
						Lat:     p.Args["lat"].(float64),
						Lng:     p.Args["lng"].(float64),
						Heading: p.Args["heading"].(float64),
						Pitch:   p.Args["pitch"].(float64),
						FOV:     p.Args["fov"].(float64),
					}
					result, err := deps.Transform.Transform(p.Context, vp, treePlacementsArg(p.Args["trees"]))
					if err != nil {
						return nil, fmt.Errorf("street view AI transformation failed: %w", err)
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func treePlacementsArg(arg interface{}) []domain.TreePlacement {
	items, _ := arg.([]interface{})
	trees := make([]domain.TreePlacement, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		trees = append(trees, domain.TreePlacement{
			Species:  stringField(m, "species"),
			Bearing:  floatField(m, "bearing"),
			Distance: floatField(m, "distance"),
			Lat:      floatField(m, "lat"),
			Lng:      floatField(m, "lng"),
		})
	}
	return trees
}

func treeLocationsArg(arg interface{}) []domain.TreeLocation {
	items, _ := arg.([]interface{})
	trees := make([]domain.TreeLocation, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		trees = append(trees, domain.TreeLocation{
			Species: stringField(m, "species"),
			Lat:     floatField(m, "lat"),
			Lng:     floatField(m, "lng"),
		})
	}
	return trees
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
