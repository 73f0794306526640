package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// ErrLocationUnsupported is returned by a Locator that cannot provide a
// position at all. Callers report it to the user and carry on without
// distance ranking.
var ErrLocationUnsupported = errors.New("location not supported")

const earthRadiusKm = 6371.0

// Coord is a latitude/longitude pair in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UnmarshalYAML accepts either [lat, lng] or {lat: .., lng: ..}.
func (c *Coord) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("coords: want [lat, lng], got %d values", len(pair))
		}
		c.Lat, c.Lng = pair[0], pair[1]
		return nil
	}
	var m struct {
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	c.Lat, c.Lng = m.Lat, m.Lng
	return nil
}

// HaversineKm is the great-circle distance between a and b.
func HaversineKm(a, b Coord) float64 {
	toRad := func(x float64) float64 { return x * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	s := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(s))
}

// Locator yields the user's position.
type Locator interface {
	Locate(ctx context.Context) (Coord, error)
}

// StaticLocator always reports the same position.
type StaticLocator struct {
	At Coord
}

func (l StaticLocator) Locate(context.Context) (Coord, error) { return l.At, nil }

// NoLocator is a Locator for environments without location support.
type NoLocator struct{}

func (NoLocator) Locate(context.Context) (Coord, error) { return Coord{}, ErrLocationUnsupported }
