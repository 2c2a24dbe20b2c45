package indexconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/index"
)

// Load reads and validates a YAML file, returning the raw bytes too.
// Unknown fields fail the load.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// Parse decodes and validates YAML rules
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns Default() with its YAML when path is empty
func LoadOrDefault(path string) (*Config, []byte, error) {
	if path != "" {
		return Load(path)
	}

	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

// Hash returns the SHA-256 of the canonical JSON form of cfg.
// A nil and an empty holiday list hash the same.
func Hash(cfg *Config) (string, error) {
	canonical := *cfg
	if canonical.Calendar.Holidays == nil {
		canonical.Calendar.Holidays = []string{}
	}

	jsonBytes, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot records the rules used for a computation
func NewRunSnapshot(cfg *Config, yamlData []byte, priceSource string) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		ConfigHash:  hash,
		ConfigYAML:  string(yamlData),
		IndexID:     cfg.Meta.IndexID,
		PriceSource: priceSource,
		CreatedAt:   time.Now(),
	}, nil
}

// Build turns a validated Config into the engine's calendar and rules
func (c *Config) Build() (*calendar.Calendar, index.Rules, error) {
	mask, err := calendar.ParseWeekmask(c.Calendar.Weekmask)
	if err != nil {
		return nil, index.Rules{}, ValidationError{"calendar.weekmask", err.Error()}
	}

	holidays, err := c.holidays()
	if err != nil {
		return nil, index.Rules{}, err
	}

	cal, err := calendar.New(mask, holidays)
	if err != nil {
		return nil, index.Rules{}, ValidationError{"calendar.weekmask", err.Error()}
	}

	start, err := calendar.ParseDate(c.Level.StartDate)
	if err != nil {
		return nil, index.Rules{}, ValidationError{"level.start_date", err.Error()}
	}

	rules := index.Rules{
		Weights:      append([]float64(nil), c.Constituents.Weights...),
		StartDate:    start,
		InitialLevel: c.Level.InitialLevel,
	}
	return cal, rules, nil
}

func (c *Config) holidays() ([]time.Time, error) {
	holidays := make([]time.Time, 0, len(c.Calendar.Holidays))
	for i, h := range c.Calendar.Holidays {
		d, err := calendar.ParseDate(h)
		if err != nil {
			return nil, ValidationError{fmt.Sprintf("calendar.holidays[%d]", i), err.Error()}
		}
		holidays = append(holidays, d)
	}
	return holidays, nil
}
