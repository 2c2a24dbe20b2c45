package indexconfig

import "time"

// Config is the YAML description of an index
type Config struct {
	Meta         Meta         `yaml:"meta" json:"meta"`
	Calendar     Calendar     `yaml:"calendar" json:"calendar"`
	Constituents Constituents `yaml:"constituents" json:"constituents"`
	Level        Level        `yaml:"level" json:"level"`
}

// Meta identifies the index definition
type Meta struct {
	IndexID string `yaml:"index_id" json:"index_id"`
	Version string `yaml:"version" json:"version"`
}

// Calendar holds the business-day rule
type Calendar struct {
	Weekmask string   `yaml:"weekmask" json:"weekmask"` // "Mon Tue Wed Thu Fri" or "1111100"
	Holidays []string `yaml:"holidays" json:"holidays"` // YYYY-MM-DD
}

// Constituents holds the selection size and positional weights
type Constituents struct {
	Count   int       `yaml:"count" json:"count"`
	Weights []float64 `yaml:"weights" json:"weights"` // sum = 1.0, len = count
}

// Level holds the seed of the level series
type Level struct {
	StartDate    string  `yaml:"start_date" json:"start_date"` // YYYY-MM-DD
	InitialLevel float64 `yaml:"initial_level" json:"initial_level"`
}

// Default returns the built-in index definition
func Default() *Config {
	return &Config{
		Meta: Meta{
			IndexID: "top3_price_weighted",
			Version: "1.0.0",
		},
		Calendar: Calendar{
			Weekmask: "Mon Tue Wed Thu Fri",
			Holidays: []string{},
		},
		Constituents: Constituents{
			Count:   3,
			Weights: []float64{0.5, 0.25, 0.25},
		},
		Level: Level{
			StartDate:    "2020-01-01",
			InitialLevel: 100,
		},
	}
}

// RunSnapshot pins the exact rules and data a computation used
type RunSnapshot struct {
	ConfigHash  string    `json:"config_hash"`
	ConfigYAML  string    `json:"config_yaml"`
	IndexID     string    `json:"index_id"`
	PriceSource string    `json:"price_source"`
	CreatedAt   time.Time `json:"created_at"`
}
