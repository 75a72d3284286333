package usecases

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/samirrijal/canopyview/internal/core/domain"
)

// DefaultSpecies is used when a tree carries no species label.
const DefaultSpecies = "maple"

// Frame position buckets, left to right.
const (
	PositionFarLeft  = "far left edge"
	PositionLeft     = "left side"
	PositionCenter   = "center"
	PositionRight    = "right side"
	PositionFarRight = "far right edge"
)

// Apparent size buckets by distance.
const (
	SizeVeryClose = "very close (large, prominent)"
	SizeClose     = "close (medium size)"
	SizeDistant   = "distant (smaller)"
)

// RelativeBearing expresses an absolute bearing relative to the camera heading,
// normalized to (-180, 180]. Negative is left of center.
func RelativeBearing(bearing, heading float64) float64 {
	rel := math.Mod(bearing-heading+360, 360)
	if rel < 0 {
		rel += 360
	}
	if rel > 180 {
		rel -= 360
	}
	return rel
}

// FramePosition buckets a relative bearing into a horizontal frame position.
// Thresholds are half-open: [-60,-20) is left side, [20,60) is right side.
func FramePosition(relative float64) string {
	switch {
	case relative < -60:
		return PositionFarLeft
	case relative < -20:
		return PositionLeft
	case relative < 20:
		return PositionCenter
	case relative < 60:
		return PositionRight
	default:
		return PositionFarRight
	}
}

// SizeDescriptor buckets a distance in meters into an apparent size.
func SizeDescriptor(distance float64) string {
	switch {
	case distance < 10:
		return SizeVeryClose
	case distance < 25:
		return SizeClose
	default:
		return SizeDistant
	}
}

func speciesOrDefault(species string) string {
	if s := strings.TrimSpace(species); s != "" {
		return s
	}
	return DefaultSpecies
}

// SpeciesTitle title-cases a species label, defaulting to maple.
func SpeciesTitle(species string) string {
	// Casers keep state; one per call.
	return cases.Title(language.Und).String(speciesOrDefault(species))
}

// DescribeTree builds the placement of one tree. index is 1-based.
func DescribeTree(index int, heading float64, tree domain.TreePlacement) domain.Placement {
	rel := RelativeBearing(tree.Bearing, heading)
	p := domain.Placement{
		Index:           index,
		Species:         SpeciesTitle(tree.Species),
		RelativeBearing: rel,
		Position:        FramePosition(rel),
		Size:            SizeDescriptor(tree.Distance),
		Distance:        tree.Distance,
	}
	p.Description = fmt.Sprintf(
		"Tree %d: %s tree positioned in the %s of the frame, %s, approximately %.0fm away",
		p.Index, p.Species, p.Position, p.Size, tree.Distance,
	)
	return p
}

// DescribePlacements describes every tree in input order.
func DescribePlacements(heading float64, trees []domain.TreePlacement) []domain.Placement {
	placements := make([]domain.Placement, 0, len(trees))
	for i, tree := range trees {
		placements = append(placements, DescribeTree(i+1, heading, tree))
	}
	return placements
}

// DominantSpecies is the species of the first tree, used as the visual reference.
func DominantSpecies(trees []domain.TreePlacement) string {
	if len(trees) == 0 {
		return DefaultSpecies
	}
	return speciesOrDefault(trees[0].Species)
}

// BuildPrompt composes the directive sent to the generative model.
func BuildPrompt(placements []domain.Placement, dominantSpecies string) string {
	lines := make([]string, len(placements))
	for i, p := range placements {
		lines[i] = p.Description
	}

	var b strings.Builder
	b.WriteString("Add ONLY the following specific tree(s) to this street view image, keeping everything else EXACTLY identical:\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nCRITICAL INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. Add ONLY these %d tree(s) - nothing else\n", len(placements))
	b.WriteString("2. Place each tree at the EXACT position specified (bearing and distance)\n")
	b.WriteString("3. Keep ALL buildings, roads, cars, people, signs, and other elements COMPLETELY unchanged\n")
	b.WriteString("4. Match the existing lighting, shadows, and perspective perfectly\n")
	b.WriteString("5. Make the trees look naturally integrated but clearly visible\n")
	fmt.Fprintf(&b, "6. Use realistic %s tree appearance for the species specified\n", dominantSpecies)
	b.WriteString("7. Do NOT add any other vegetation, modifications, or enhancements\n")
	b.WriteString("8. The tree should look like it's actually planted there (on sidewalk, grass, etc.)\n\n")
	b.WriteString("This is a precise visualization of ONLY the planted intervention(s) - not a general transformation.")
	return b.String()
}

// PromptFor describes trees relative to heading and returns the placements and prompt.
func PromptFor(heading float64, trees []domain.TreePlacement) ([]domain.Placement, string) {
	placements := DescribePlacements(heading, trees)
	return placements, BuildPrompt(placements, DominantSpecies(trees))
}
