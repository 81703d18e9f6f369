// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package predictor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrNoHistory is returned when a temperature trace is requested from a
// predictor that was not recording one.
var ErrNoHistory = errors.New("no temperature history kept")

// History returns the recorded temperature trace in iteration order.
func (p *AdaptiveSimulatedAnnealing) History() []TemperatureRecord {
	return p.history
}

// WriteHistory renders the trace as CSV for external analysis. The
// columns are iteration, temperature, top_chosen, acceptance_probability
// and accepted_count.
func (p *AdaptiveSimulatedAnnealing) WriteHistory(w io.Writer) error {
	if !p.KeepHistory {
		return ErrNoHistory
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "temperature", "top_chosen", "acceptance_probability", "accepted_count"}); err != nil {
		return fmt.Errorf("writing history header: %w", err)
	}
	for _, rec := range p.history {
		row := []string{
			strconv.Itoa(rec.Iteration),
			strconv.FormatFloat(rec.Temperature, 'g', -1, 64),
			strconv.FormatBool(rec.TopChosen),
			strconv.FormatFloat(rec.AcceptanceProbability, 'g', -1, 64),
			strconv.Itoa(rec.AcceptedCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing history row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
