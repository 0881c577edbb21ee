package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// tickFixture is one entry in a replay YAML document.
type tickFixture struct {
	Symbol    string                 `yaml:"symbol"`
	Timestamp time.Time              `yaml:"timestamp"`
	Fields    map[string]interface{} `yaml:"fields"`
}

// fixtureDoc is the top-level shape a replay file must have.
type fixtureDoc struct {
	Ticks []tickFixture `yaml:"ticks"`
}

// loadFixture reads and parses a replay fixture from path.
func loadFixture(path string) ([]tickFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}

	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(doc.Ticks) == 0 {
		return nil, fmt.Errorf("fixture %s declares no ticks", path)
	}
	return doc.Ticks, nil
}

// rawSnapshot turns a fixture tick's fields into the map shape the engine
// expects, stamping the timestamp and the declared percentage format.
func rawSnapshot(tick tickFixture, percentageFormat string) map[string]interface{} {
	raw := make(map[string]interface{}, len(tick.Fields)+2)
	for k, v := range tick.Fields {
		raw[k] = v
	}
	raw["timestamp"] = tick.Timestamp
	raw["_metadata"] = map[string]interface{}{"percentage_format": percentageFormat}
	return raw
}
