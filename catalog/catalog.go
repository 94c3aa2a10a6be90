// Package catalog holds the quiz questions, plans and add-ons offered by
// the funnel. A default catalog is compiled into the binary; Load reads an
// override from disk.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fitfunnel/api/models"
)

//go:embed default.yaml
var defaultCatalog []byte

type QuizQuestion struct {
	ID       int      `yaml:"id" json:"id"`
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
}

type Plan struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       float64  `yaml:"price" json:"price"`
	Period      string   `yaml:"period" json:"period"`
	Features    []string `yaml:"features" json:"features"`
	Recommended bool     `yaml:"recommended,omitempty" json:"recommended,omitempty"`
}

// CartName is the line item name used when the plan is added to a cart.
func (p Plan) CartName() string {
	return p.Name + " Plan"
}

type AddOn struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Price       float64 `yaml:"price" json:"price"`
	Description string  `yaml:"description" json:"description"`
}

type Catalog struct {
	Questions []QuizQuestion `yaml:"questions" json:"questions"`
	Plans     []Plan         `yaml:"plans" json:"plans"`
	AddOns    []AddOn        `yaml:"addOns" json:"addOns"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that quiz steps are numbered 1..n in order and that plan
// and add-on ids are unique and priced.
func (c *Catalog) Validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("catalog has no quiz questions")
	}
	if len(c.Questions) > models.MaxQuizSteps {
		return fmt.Errorf("catalog has %d quiz questions, at most %d allowed", len(c.Questions), models.MaxQuizSteps)
	}
	for i, q := range c.Questions {
		if q.ID != i+1 {
			return fmt.Errorf("quiz question %d has id %d, want %d", i, q.ID, i+1)
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("quiz question %d has no options", q.ID)
		}
	}

	seen := make(map[string]bool)
	for _, p := range c.Plans {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("plan id %q is empty or duplicated", p.ID)
		}
		if !(p.Price > 0) {
			return fmt.Errorf("plan %q must have a positive price", p.ID)
		}
		seen[p.ID] = true
	}
	for _, a := range c.AddOns {
		if a.ID == "" || seen[a.ID] {
			return fmt.Errorf("add-on id %q is empty or duplicated", a.ID)
		}
		if !(a.Price > 0) {
			return fmt.Errorf("add-on %q must have a positive price", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

func (c *Catalog) TotalSteps() int {
	return len(c.Questions)
}

// Question returns the question for a 1-based step.
func (c *Catalog) Question(step int) (QuizQuestion, bool) {
	if step < 1 || step > len(c.Questions) {
		return QuizQuestion{}, false
	}
	return c.Questions[step-1], true
}

func (c *Catalog) Plan(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func (c *Catalog) AddOn(id string) (AddOn, bool) {
	for _, a := range c.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}
