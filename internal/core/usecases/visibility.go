package usecases

import (
	"math"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/pkg/geospatial"
)

// VisibilityResolver turns tree coordinates into placements for a viewpoint,
// keeping only trees that fall inside the camera's view.
type VisibilityResolver struct {
	maxRelativeBearing float64
	maxDistance        float64
}

// NewVisibilityResolver creates a resolver. Trees are visible when
// |relative bearing| <= maxRelativeBearing and distance <= maxDistance meters.
func NewVisibilityResolver(maxRelativeBearing, maxDistance float64) *VisibilityResolver {
	return &VisibilityResolver{maxRelativeBearing: maxRelativeBearing, maxDistance: maxDistance}
}

// Locate computes bearing and distance from vp to a tree.
func Locate(vp domain.Viewpoint, tree domain.TreeLocation) domain.TreePlacement {
	return domain.TreePlacement{
		Species:  speciesOrDefault(tree.Species),
		Bearing:  geospatial.InitialBearing(vp.Lat, vp.Lng, tree.Lat, tree.Lng),
		Distance: geospatial.Haversine(vp.Lat, vp.Lng, tree.Lat, tree.Lng),
		Lat:      tree.Lat,
		Lng:      tree.Lng,
	}
}

// VisibleTrees returns the visible trees in input order.
func (r *VisibilityResolver) VisibleTrees(vp domain.Viewpoint, trees []domain.TreeLocation) []domain.TreePlacement {
	visible := make([]domain.TreePlacement, 0, len(trees))
	for _, tree := range trees {
		p := Locate(vp, tree)
		rel := RelativeBearing(p.Bearing, vp.Heading)
		if math.Abs(rel) <= r.maxRelativeBearing && p.Distance <= r.maxDistance {
			visible = append(visible, p)
		}
	}
	return visible
}
