package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/core/usecases"
)

// DefaultFOV is used when a request omits fov.
const DefaultFOV = 90.0

// TransformRequest is the body of POST /v1/streetview-ai/transform.
// lat and lng are required; heading and pitch default to 0 and fov to 90.
type TransformRequest struct {
	Lat     *float64               `json:"lat"`
	Lng     *float64               `json:"lng"`
	Heading float64                `json:"heading"`
	Pitch   float64                `json:"pitch"`
	FOV     *float64               `json:"fov"`
	Trees   []domain.TreePlacement `json:"trees"`
}

// Viewpoint validates presence of lat/lng and applies defaults.
// Ranges are left to the imagery provider.
func (r *TransformRequest) Viewpoint() (domain.Viewpoint, error) {
	if r.Lat == nil || r.Lng == nil {
		return domain.Viewpoint{}, errors.New("lat and lng are required")
	}
	fov := DefaultFOV
	if r.FOV != nil {
		fov = *r.FOV
	}
	return domain.Viewpoint{
		Lat:     *r.Lat,
		Lng:     *r.Lng,
		Heading: r.Heading,
		Pitch:   r.Pitch,
		FOV:     fov,
	}, nil
}

// PromptRequest is the body of POST /v1/streetview-ai/prompt.
type PromptRequest struct {
	Heading float64                `json:"heading"`
	Trees   []domain.TreePlacement `json:"trees"`
}

// PromptResponse previews the generation prompt without calling any provider.
type PromptResponse struct {
	Placements []domain.Placement `json:"placements"`
	Prompt     string             `json:"prompt"`
}

// VisibleTreesRequest is the body of POST /v1/streetview-ai/visible-trees.
type VisibleTreesRequest struct {
	Lat     *float64              `json:"lat"`
	Lng     *float64              `json:"lng"`
	Heading float64               `json:"heading"`
	Trees   []domain.TreeLocation `json:"trees"`
}

// VisibleTreesResponse lists placements for the trees inside the view.
type VisibleTreesResponse struct {
	Trees []domain.TreePlacement `json:"trees"`
	Count int                    `json:"count"`
}

// TransformHandler fetches the Street View frame and composites the requested trees.
func TransformHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req TransformRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		vp, err := req.Viewpoint()
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		trees := req.Trees
		if trees == nil {
			trees = []domain.TreePlacement{}
		}

		result, err := deps.Transform.Transform(c.UserContext(), vp, trees)
		if err != nil {
			if errors.Is(err, domain.ErrMissingCredential) {
				return errBadRequest(c, err.Error())
			}
			return errInternal(c, "Street View AI transformation failed: "+err.Error())
		}

		return c.JSON(result)
	}
}

// PromptHandler returns the per-tree descriptions and the prompt a transform would send.
func PromptHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PromptRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if len(req.Trees) == 0 {
			return errBadRequest(c, "at least one tree is required")
		}

		placements, prompt := usecases.PromptFor(req.Heading, req.Trees)
		return c.JSON(PromptResponse{Placements: placements, Prompt: prompt})
	}
}

// VisibleTreesHandler resolves tree coordinates into bearings and distances,
// keeping those inside the camera's view.
func VisibleTreesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req VisibleTreesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}

		vp := domain.Viewpoint{Lat: *req.Lat, Lng: *req.Lng, Heading: req.Heading}
		visible := deps.Visibility.VisibleTrees(vp, req.Trees)
		return c.JSON(VisibleTreesResponse{Trees: visible, Count: len(visible)})
	}
}
