package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samirrijal/canopyview/internal/core/domain"
)

// parsePlacement parses "species:bearing:distance". The species may be empty.
func parsePlacement(s string) (domain.TreePlacement, error) {
	species, a, b, err := splitTree(s)
	if err != nil {
		return domain.TreePlacement{}, err
	}
	return domain.TreePlacement{Species: species, Bearing: a, Distance: b}, nil
}

// parseLocation parses "species:lat:lng".
func parseLocation(s string) (domain.TreeLocation, error) {
	species, a, b, err := splitTree(s)
	if err != nil {
		return domain.TreeLocation{}, err
	}
	return domain.TreeLocation{Species: species, Lat: a, Lng: b}, nil
}

func splitTree(s string) (string, float64, float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("tree %q: want species:x:y", s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("tree %q: %w", s, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("tree %q: %w", s, err)
	}
	return strings.TrimSpace(parts[0]), a, b, nil
}
