// Package location answers "where is the device right now" for supplier
// registration.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccessDenied is returned when the user refused or restricted location access.
	ErrAccessDenied = errors.New("location access denied")
	// ErrUnknown is returned when no coordinate could be determined.
	ErrUnknown = errors.New("location unknown")
	// ErrInvalidCoordinate is returned for latitudes or longitudes out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate is on the globe.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// MapsURL links to the coordinate on Google Maps.
func MapsURL(c Coordinate) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", c.Latitude, c.Longitude)
}

// Provider is the one-shot device location collaborator.
type Provider interface {
	RequestCurrentLocation(ctx context.Context) (Coordinate, error)
}

// Access is the authorization state of the location service.
type Access string

const (
	AccessGranted    Access = "granted"
	AccessDenied     Access = "denied"
	AccessRestricted Access = "restricted"
)

// ParseAccess maps a configuration value onto an Access. Unrecognised values
// are returned unchanged and make the provider fail with ErrUnknown.
func ParseAccess(s string) Access {
	return Access(strings.ToLower(strings.TrimSpace(s)))
}

type staticProvider struct {
	access Access
	coord  *Coordinate
}

// NewStaticProvider returns a provider with a fixed authorization state and
// coordinate. coord may be nil when the position is not known.
func NewStaticProvider(access Access, coord *Coordinate) Provider {
	return &staticProvider{access: access, coord: coord}
}

func (p *staticProvider) RequestCurrentLocation(ctx context.Context) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	switch p.access {
	case AccessDenied, AccessRestricted:
		return Coordinate{}, ErrAccessDenied
	case AccessGranted:
		if p.coord == nil {
			return Coordinate{}, ErrUnknown
		}
		return *p.coord, nil
	default:
		return Coordinate{}, ErrUnknown
	}
}

// Fixed is a provider that always reports itself, used when the client sends
// its own coordinate.
type Fixed Coordinate

func (f Fixed) RequestCurrentLocation(ctx context.Context) (Coordinate, error) {
	c := Coordinate(f)
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}
