// Package regression runs the regression plan: for every suite and device it
// extracts the measured workbook, simulates every geometry, compares the
// results and decides pass or fail.
package regression

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mosregress/internal/device"
)

// Plan lists the suites and devices of one run.
type Plan struct {
	Version int         `yaml:"version"`
	Suites  []SuitePlan `yaml:"suites"`
}

// SuitePlan is one suite of a plan. Root defaults to the suite's own root.
type SuitePlan struct {
	ID      device.SuiteID `yaml:"id"`
	Root    string         `yaml:"root,omitempty"`
	Devices []DevicePlan   `yaml:"devices"`
}

// DevicePlan names a device and its measured workbook, relative to the data
// directory unless absolute.
type DevicePlan struct {
	Name string `yaml:"name"`
	Data string `yaml:"data"`
}

// cvWorkbooks are shared by device pairs, in device order.
var cvWorkbooks = []string{"3p3_cv", "6p0_cv", "3p3_sab_cv", "6p0_sab_cv", "6p0_nat_cv"}

const workbookDir = "MOS"

// DefaultPlan returns every suite with its full device list.
func DefaultPlan() *Plan {
	p := &Plan{Version: 1}
	for _, s := range device.Suites() {
		sp := SuitePlan{ID: s.ID, Root: s.Root}
		for i, dev := range s.Devices {
			var data string
			if s.ID == device.SuiteCV {
				data = cvWorkbooks[i/2] + ".nl_out.xlsx"
			} else {
				data = dev + "_iv.nl_out.xlsx"
			}
			sp.Devices = append(sp.Devices, DevicePlan{Name: dev, Data: filepath.Join(workbookDir, data)})
		}
		p.Suites = append(p.Suites, sp)
	}
	return p
}

// LoadPlan reads a YAML plan from disk.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// Validate checks that every suite and device is known and fills in
// default roots.
func (p *Plan) Validate() error {
	if len(p.Suites) == 0 {
		return fmt.Errorf("plan has no suites")
	}
	for i := range p.Suites {
		sp := &p.Suites[i]
		s, err := device.SuiteByID(sp.ID)
		if err != nil {
			return err
		}
		if sp.Root == "" {
			sp.Root = s.Root
		}
		for _, d := range sp.Devices {
			if _, err := device.Resolve(sp.ID, d.Name); err != nil {
				return fmt.Errorf("suite %s: %w", sp.ID, err)
			}
			if d.Data == "" {
				return fmt.Errorf("suite %s: device %s has no data file", sp.ID, d.Name)
			}
		}
	}
	return nil
}

// Save writes the plan as YAML.
func (p *Plan) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
