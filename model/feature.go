package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrInvalidFeatureID is returned when a deep-link value is not a feature id.
var ErrInvalidFeatureID = errors.New("invalid feature id")

// FeatureID identifies one site feature inside the active vector source.
// It is stable across sessions and is what the "point" URL parameter carries.
type FeatureID uint64

// maxExactID is the largest integer a float64 holds exactly.
const maxExactID = 1 << 53

// ParseFeatureID parses the numeric form used in URLs. Surrounding whitespace
// is ignored. Besides plain decimals, any finite number without a fractional
// part is accepted ("42.0", "4.2e1"). Negative, fractional and empty values
// are rejected.
func ParseFeatureID(raw string) (FeatureID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidFeatureID)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return FeatureID(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > maxExactID || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFeatureID, raw)
	}
	return FeatureID(f), nil
}

// String returns the decimal form of the id.
func (id FeatureID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Coordinate is a longitude/latitude pair in degrees.
type Coordinate struct {
	Lng float64
	Lat float64
}

// CoordinateFromPoint converts an orb point (x=lng, y=lat).
func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lng: p.Lon(), Lat: p.Lat()}
}

// Point returns the coordinate as an orb point.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// ClipboardText renders the coordinate the way it is copied for the user:
// latitude first, six decimals.
func (c Coordinate) ClipboardText() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lng, c.Lat)
}

// FocusedPoint is the feature the session is currently focused on. The popup
// flag mirrors whether the detail panel for it is on screen.
type FocusedPoint struct {
	ID         FeatureID
	Coordinate Coordinate
	PopupOpen  bool
}

// RetryBudget tracks attempts for a single resolution request.
type RetryBudget struct {
	Made    int
	Allowed int
}

// Exhausted reports whether no attempts remain.
func (b RetryBudget) Exhausted() bool {
	return b.Made >= b.Allowed
}
