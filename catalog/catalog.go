/*
Package catalog holds the shop list the map page is built from.

PURPOSE:
  The shop catalog is read-only to the progression logic. It is loaded from
  a YAML document, looked up by identifier when an action names a shop,
  searched by keyword and ranked by distance from the user's location.

YAML SCHEMA:
  shops:
    - id: wanaka-honten
      name: Takoyaki Wanaka
      coords: [34.6662, 135.5013]
      category: takoyaki
      rating: 4.5
      tags: [takeout, classic]
      hours: "10:00-21:00"
      details: Crispy outside, soft inside.
      reviews:
        - {user: aki, text: Great!}
      activity: 10% off on weekdays
*/
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrShopNotFound is returned when an identifier is not in the catalog.
	ErrShopNotFound = errors.New("shop not found")
)

// Review is a user comment on a shop.
type Review struct {
	User string `yaml:"user" json:"user"`
	Text string `yaml:"text" json:"text"`
}

// Shop is one catalog record.
type Shop struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Coords   Coord    `yaml:"coords" json:"coords"`
	Category string   `yaml:"category" json:"category"`
	Rating   float64  `yaml:"rating" json:"rating"`
	Tags     []string `yaml:"tags" json:"tags"`
	Hours    string   `yaml:"hours" json:"hours,omitempty"`
	Details  string   `yaml:"details" json:"details,omitempty"`
	Reviews  []Review `yaml:"reviews" json:"reviews,omitempty"`
	Activity string   `yaml:"activity" json:"activity,omitempty"`
}

// Catalog is an ordered, indexed list of shops.
type Catalog struct {
	shops []Shop
	byID  map[string]int
}

type document struct {
	Shops []Shop `yaml:"shops"`
}

// New builds a catalog from shops. Identifiers must be unique and non-empty;
// a shop without an ID uses its name.
func New(shops []Shop) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(shops))}
	for _, s := range shops {
		if s.ID == "" {
			s.ID = s.Name
		}
		if s.ID == "" {
			return nil, fmt.Errorf("shop %d: missing id and name", len(c.shops))
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate shop id %q", s.ID)
		}
		c.byID[s.ID] = len(c.shops)
		c.shops = append(c.shops, s)
	}
	return c, nil
}

// Parse reads a YAML catalog document.
func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil)
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Shops)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Len returns the number of shops.
func (c *Catalog) Len() int { return len(c.shops) }

// All returns the shops in catalog order.
func (c *Catalog) All() []Shop {
	return append([]Shop(nil), c.shops...)
}

// Get looks up a shop by identifier.
func (c *Catalog) Get(id string) (Shop, error) {
	i, ok := c.byID[id]
	if !ok {
		return Shop{}, fmt.Errorf("%w: %s", ErrShopNotFound, id)
	}
	return c.shops[i], nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Search returns up to limit shops whose name, details or tags contain
// keyword, case-insensitively. An empty keyword matches every shop.
func (c *Catalog) Search(keyword string, limit int) []Shop {
	if limit <= 0 {
		limit = 12
	}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	var res []Shop
	for _, s := range c.shops {
		hay := strings.ToLower(s.Name + s.Details + strings.Join(s.Tags, ","))
		if strings.Contains(hay, kw) {
			res = append(res, s)
			if len(res) == limit {
				break
			}
		}
	}
	return res
}

// Ranked is a shop with its distance from the user, when known.
type Ranked struct {
	Shop
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Nearby returns up to limit shops ordered by distance from from. Without a
// location the first limit shops are returned in catalog order.
func (c *Catalog) Nearby(from *Coord, limit int) []Ranked {
	if limit <= 0 {
		limit = 6
	}
	res := make([]Ranked, 0, len(c.shops))
	for _, s := range c.shops {
		r := Ranked{Shop: s}
		if from != nil {
			d := HaversineKm(*from, s.Coords)
			r.DistanceKm = &d
		}
		res = append(res, r)
	}
	if from != nil {
		sort.SliceStable(res, func(i, j int) bool {
			return *res[i].DistanceKm < *res[j].DistanceKm
		})
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res
}
