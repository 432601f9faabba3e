// Package scenario loads the catalog of patient scenarios and selects one
// for each new call. A scenario is the behavioral brief handed to the
// utterance generator: what the synthetic patient wants and how they act.
package scenario

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Scenario is one entry in the catalog.
type Scenario struct {
	Name  string `yaml:"name"`
	Brief string `yaml:"brief"`
}

// Catalog holds the available scenarios and a selection function.
type Catalog struct {
	scenarios []Scenario
	pick      func(n int) int
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// builtin is used when no scenario file is configured.
var builtin = []Scenario{
	{
		Name:  "new-patient-appointment",
		Brief: "You are a new patient calling to schedule a first appointment for a persistent cough that started two weeks ago. You are polite but a little anxious, and you are only free on weekday afternoons.",
	},
	{
		Name:  "prescription-refill",
		Brief: "You are an existing patient calling to request a refill of your blood pressure medication. You ran out two days ago and want it sent to your usual pharmacy.",
	},
	{
		Name:  "reschedule-followup",
		Brief: "You are calling to reschedule a follow-up visit you had to miss because of a work conflict. You want the earliest available morning slot next week.",
	},
}

// Load reads a catalog from the given YAML file. An empty path returns the
// built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(builtin), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if len(cf.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file %s contains no scenarios", path)
	}
	for i, s := range cf.Scenarios {
		if strings.TrimSpace(s.Brief) == "" {
			return nil, fmt.Errorf("scenario %d (%q) has an empty brief", i, s.Name)
		}
	}

	return New(cf.Scenarios), nil
}

// New builds a catalog over the given scenarios with random selection.
func New(scenarios []Scenario) *Catalog {
	return &Catalog{scenarios: scenarios, pick: rand.Intn}
}

// WithPicker overrides the selection function. Used by tests and by callers
// that want deterministic selection.
func (c *Catalog) WithPicker(pick func(n int) int) *Catalog {
	c.pick = pick
	return c
}

// Pick selects a scenario brief for a new call session.
func (c *Catalog) Pick() string {
	return c.scenarios[c.pick(len(c.scenarios))].Brief
}

// Len returns the number of scenarios in the catalog.
func (c *Catalog) Len() int {
	return len(c.scenarios)
}
