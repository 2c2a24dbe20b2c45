package indexconfig

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/wonny/indexmodel/internal/calendar"
)

func TestLoad(t *testing.T) {
	path := "../../config/index/top3_price_weighted.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Meta.IndexID != def.Meta.IndexID || cfg.Constituents.Count != def.Constituents.Count {
		t.Errorf("unexpected rules %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Constituents.Weights, def.Constituents.Weights) {
		t.Errorf("expected weights %v, got %v", def.Constituents.Weights, cfg.Constituents.Weights)
	}
	if cfg.Level != def.Level {
		t.Errorf("expected level %+v, got %+v", def.Level, cfg.Level)
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	t.Logf("config hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	data := []byte(`
meta:
  index_id: x
constituents:
  count: 1
  weights: [1.0]
  rebalance: weekly
level:
  start_date: "2020-01-01"
  initial_level: 100
calendar:
  weekmask: "1111100"
`)

	if _, err := Parse(data); err == nil {
		t.Fatal("expected unknown field to fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing index id", func(c *Config) { c.Meta.IndexID = "" }, "meta.index_id"},
		{"bad weekmask", func(c *Config) { c.Calendar.Weekmask = "Mon Funday" }, "calendar.weekmask"},
		{"empty weekmask", func(c *Config) { c.Calendar.Weekmask = "0000000" }, "calendar.weekmask"},
		{"bad holiday", func(c *Config) { c.Calendar.Holidays = []string{"2020-13-01"} }, "calendar.holidays[0]"},
		{"zero count", func(c *Config) { c.Constituents.Count = 0 }, "constituents.count"},
		{"weights length", func(c *Config) { c.Constituents.Count = 4 }, "constituents.weights"},
		{"negative weight", func(c *Config) { c.Constituents.Weights = []float64{1.5, -0.25, -0.25} }, "constituents.weights[1]"},
		{"weights sum", func(c *Config) { c.Constituents.Weights = []float64{0.5, 0.3, 0.3} }, "constituents.weights"},
		{"bad start date", func(c *Config) { c.Level.StartDate = "01/01/2020" }, "level.start_date"},
		{"zero initial level", func(c *Config) { c.Level.InitialLevel = 0 }, "level.initial_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s (%s)", tt.field, verr.Field, verr.Message)
			}
		})
	}

	if err := Validate(Default()); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestBuild(t *testing.T) {
	cfg := Default()
	cfg.Calendar.Holidays = []string{"2020-01-01"}

	cal, rules, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if cal.IsBusinessDay(calendar.Date(2020, 1, 1)) {
		t.Error("holiday should not be a business day")
	}
	if !rules.StartDate.Equal(calendar.Date(2020, 1, 1)) {
		t.Errorf("unexpected start date %s", rules.StartDate)
	}
	if rules.InitialLevel != 100 {
		t.Errorf("expected initial level 100, got %v", rules.InitialLevel)
	}

	rules.Weights[0] = 0.9
	if cfg.Constituents.Weights[0] != 0.5 {
		t.Error("Build must copy weights")
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Level.StartDate = "2020-02-01" // Saturday
	cfg.Constituents.Weights = []float64{0.25, 0.5, 0.25}
	cfg.Calendar.Holidays = []string{"2020-12-25", "2020-12-25"}

	codes := map[string]string{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = w.Message
	}

	for _, code := range []string{"START_NOT_BUSINESS_DAY", "WEIGHTS_NOT_DESCENDING", "DUPLICATE_HOLIDAY"} {
		if _, ok := codes[code]; !ok {
			t.Errorf("expected warning %s", code)
		}
	}
	if !strings.Contains(codes["START_NOT_BUSINESS_DAY"], "2020-02-03") {
		t.Errorf("expected seed date in message, got %q", codes["START_NOT_BUSINESS_DAY"])
	}

	if w := Warn(Default()); len(w) != 0 {
		t.Errorf("default config should not warn, got %v", w)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, data, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}

	reparsed, err := Parse(data)
	if err != nil {
		t.Fatalf("default YAML does not parse: %v", err)
	}

	h1, _ := Hash(cfg)
	h2, _ := Hash(reparsed)
	if h1 != h2 {
		t.Error("default YAML does not round-trip to the same hash")
	}
}

func TestNewRunSnapshot(t *testing.T) {
	cfg, data, _ := LoadOrDefault("")

	snap, err := NewRunSnapshot(cfg, data, "csv")
	if err != nil {
		t.Fatalf("NewRunSnapshot failed: %v", err)
	}
	if snap.IndexID != "top3_price_weighted" || snap.PriceSource != "csv" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.ConfigYAML != string(data) {
		t.Error("snapshot must keep the raw YAML")
	}
}
