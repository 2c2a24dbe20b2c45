package indexconfig

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/indexmodel/internal/calendar"
)

// ValidationError is a rules violation that stops the program
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a recommendation violation; it is reported but not fatal
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.IndexID == "" {
		return ValidationError{"meta.index_id", "required"}
	}

	// === Calendar ===
	if _, err := calendar.ParseWeekmask(cfg.Calendar.Weekmask); err != nil {
		return ValidationError{"calendar.weekmask", err.Error()}
	}
	if _, err := cfg.holidays(); err != nil {
		return err
	}

	// === Constituents ===
	c := cfg.Constituents
	if c.Count < 1 {
		return ValidationError{"constituents.count", "must be >= 1"}
	}
	if len(c.Weights) != c.Count {
		return ValidationError{"constituents.weights", fmt.Sprintf("length %d must equal count %d", len(c.Weights), c.Count)}
	}
	for i, w := range c.Weights {
		if w <= 0 {
			return ValidationError{fmt.Sprintf("constituents.weights[%d]", i), "must be > 0"}
		}
	}
	if err := validateWeightsSum(c.Weights, 1.0, 1e-6); err != nil {
		return ValidationError{"constituents.weights", err.Error()}
	}

	// === Level ===
	if _, err := calendar.ParseDate(cfg.Level.StartDate); err != nil {
		return ValidationError{"level.start_date", "must be YYYY-MM-DD"}
	}
	if cfg.Level.InitialLevel <= 0 || math.IsInf(cfg.Level.InitialLevel, 0) || math.IsNaN(cfg.Level.InitialLevel) {
		return ValidationError{"level.initial_level", "must be a positive number"}
	}

	return nil
}

// Warn reports recommendation violations of a valid config
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	cal, rules, err := cfg.Build()
	if err != nil {
		return warnings
	}

	if !cal.IsBusinessDay(rules.StartDate) {
		seed := cal.RollForward(rules.StartDate).Format(calendar.DateLayout)
		warnings = append(warnings, Warning{
			Code:    "START_NOT_BUSINESS_DAY",
			Message: fmt.Sprintf("start_date %s is not a business day; the index is seeded on %s", cfg.Level.StartDate, seed),
		})
	}

	for i := 1; i < len(rules.Weights); i++ {
		if rules.Weights[i] > rules.Weights[i-1] {
			warnings = append(warnings, Warning{
				Code:    "WEIGHTS_NOT_DESCENDING",
				Message: "weights are paired with constituents in price rank order; a larger weight on a lower rank is unusual",
			})
			break
		}
	}

	seen := make(map[string]bool, len(cfg.Calendar.Holidays))
	for _, h := range cfg.Calendar.Holidays {
		if seen[h] {
			warnings = append(warnings, Warning{Code: "DUPLICATE_HOLIDAY", Message: "holiday listed twice: " + h})
		}
		seen[h] = true
	}

	return warnings
}

func validateWeightsSum(weights []float64, target, tolerance float64) error {
	if len(weights) == 0 {
		return errors.New("empty weights")
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > tolerance {
		return fmt.Errorf("must sum to %.2f, got %.6f", target, sum)
	}
	return nil
}
