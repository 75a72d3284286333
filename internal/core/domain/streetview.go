package domain

import "time"

// Viewpoint is the camera position and orientation a Street View frame is captured from.
type Viewpoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"` // 0-360, 0 = north
	Pitch   float64 `json:"pitch"`   // -90..90, 0 = horizontal
	FOV     float64 `json:"fov"`
}

// Location returns the subset of the viewpoint echoed back to callers.
func (v Viewpoint) Location() Location {
	return Location{Lat: v.Lat, Lng: v.Lng, Heading: v.Heading, Pitch: v.Pitch}
}

// TreePlacement is a planted tree as seen from a viewpoint.
// Lat/Lng are informational; placement uses Bearing and Distance only.
type TreePlacement struct {
	Species  string  `json:"species"`
	Bearing  float64 `json:"bearing"`  // absolute compass bearing from viewpoint to tree
	Distance float64 `json:"distance"` // meters
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// TreeLocation is a tree known only by its coordinates.
type TreeLocation struct {
	Species string  `json:"species"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Location is the echoed viewpoint in a TransformationResult.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
}

// TransformationResult holds both encodings of a composited frame.
type TransformationResult struct {
	OriginalImage    string   `json:"original_image"`
	TransformedImage string   `json:"transformed_image"`
	Location         Location `json:"location"`
	TreesAdded       int      `json:"trees_added"`
}

// Placement is the natural-language description of one tree in the frame.
type Placement struct {
	Index           int     `json:"index"`
	Species         string  `json:"species"`
	RelativeBearing float64 `json:"relative_bearing"`
	Position        string  `json:"position"`
	Size            string  `json:"size"`
	Distance        float64 `json:"distance"`
	Description     string  `json:"description"`
}

// TransformOutcome classifies how a transform request ended.
type TransformOutcome string

const (
	OutcomeCompleted          TransformOutcome = "completed"
	OutcomePreconditionFailed TransformOutcome = "precondition_failed"
	OutcomeFetchFailed        TransformOutcome = "fetch_failed"
	OutcomeGenerationFailed   TransformOutcome = "generation_failed"
	OutcomeFailed             TransformOutcome = "failed"
)

// TransformEvent is emitted once per transform request.
type TransformEvent struct {
	ID          string           `json:"id"`
	Outcome     TransformOutcome `json:"outcome"`
	Location    Location         `json:"location"`
	TreesAdded  int              `json:"trees_added"`
	Transformed bool             `json:"transformed"`
	DurationMS  int64            `json:"duration_ms"`
	Error       string           `json:"error,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
