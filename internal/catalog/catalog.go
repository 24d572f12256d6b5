// Package catalog holds the static lookup tables used by the flows.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Period is an inclusive release window, dates formatted YYYY-MM-DD.
type Period struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Catalog struct {
	Periods               map[string]Period `yaml:"periods"`
	Genres                map[string]int    `yaml:"genres"`
	MindfulnessCategories []string          `yaml:"mindfulness_categories"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &c, nil
}

// Period looks up a named period such as "1990s".
func (c *Catalog) Period(name string) (Period, bool) {
	p, ok := c.Periods[strings.TrimSpace(name)]
	return p, ok
}

// Genre looks up a TMDB genre id, ignoring case.
func (c *Catalog) Genre(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if id, ok := c.Genres[name]; ok {
		return id, true
	}
	for k, id := range c.Genres {
		if strings.EqualFold(k, name) {
			return id, true
		}
	}
	return 0, false
}

// PeriodNames lists known period names in order.
func (c *Catalog) PeriodNames() []string {
	names := make([]string, 0, len(c.Periods))
	for name := range c.Periods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
