// Package mkm renders and reads the external solver's text formats: the
// section-based .mkm input grammar and the whitespace-columned coverage.dat
// output.
package mkm

import (
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"emkm/domain/kinetics"
	"emkm/internal/errors"
)

// Writer generates solver input files in the section grammar the external
// binary expects: &compounds, &reactions, &settings, &runs; semicolon field
// separators; # comment lines. Output is byte-stable for identical inputs.
type Writer struct{}

// NewWriter creates an input file generator
func NewWriter() *Writer {
	return &Writer{}
}

// Generate renders one input file at path. When initial is non-nil its
// values replace the workbook's adsorbate activities (sweep-mode coverage
// propagation); the free-site activity follows the snapshot's "*" entry or
// defaults to 1.0.
func (w *Writer) Generate(model *kinetics.Model, params kinetics.SimulationParams, initial kinetics.CoverageSnapshot, path string) error {
	if err := checkSpecies(model); err != nil {
		return err
	}

	var b strings.Builder
	w.writeCompounds(&b, model, params, initial)
	w.writeReactions(&b, model, params)
	w.writeSettings(&b, params)
	w.writeRuns(&b, params)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "failed to write input file")
	}
	log.Printf("[InputGen] generated %s (pH=%g, V=%g)", path, params.PH, params.Potential)
	return nil
}

// checkSpecies verifies every reaction token resolves to a declared species
func checkSpecies(model *kinetics.Model) error {
	for _, rxn := range model.Reactions {
		for _, side := range [][]string{rxn.Reactants, rxn.Products} {
			for _, name := range side {
				if kinetics.IsAdsorbate(name) || name == kinetics.FreeSite {
					continue // adsorbates are derived from the reactions themselves
				}
				if !model.HasSpecies(name) {
					return errors.TemplateError(fmt.Sprintf("reaction %q references unknown species %q", rxn.Raw, name))
				}
			}
		}
	}
	return nil
}

func (w *Writer) writeCompounds(b *strings.Builder, model *kinetics.Model, params kinetics.SimulationParams, initial kinetics.CoverageSnapshot) {
	b.WriteString("&compounds\n\n")

	b.WriteString("#gas-phase compounds\n\n#Name; isSite; concentration\n\n")
	for _, gas := range model.Gases {
		conc := gas.Activity
		// OH activity is fixed by the bulk equilibrium at neutral pH
		if gas.Name == "OH" && params.PH == 7 {
			conc = math.Pow(10, -(14 - 9.5))
		}
		fmt.Fprintf(b, "%-15s; 0; %v\n", gas.Name, conc)
	}

	b.WriteString("\n\n#adsorbates\n\n#Name; isSite; activity\n\n")
	for _, ads := range model.Adsorbates {
		activity := ads.Activity
		if initial != nil {
			if v, ok := initial[ads.Name]; ok {
				activity = v
			}
		}
		fmt.Fprintf(b, "%-15s; 1; %v\n", ads.Name, activity)
	}

	freeSite := 1.0
	if initial != nil {
		if v, ok := initial[kinetics.FreeSite]; ok {
			freeSite = v
		}
	}
	b.WriteString("\n#free sites on the surface\n\n")
	b.WriteString("#Name; isSite; activity\n\n")
	fmt.Fprintf(b, "*; 1; %v\n\n", freeSite)
}

func (w *Writer) writeReactions(b *strings.Builder, model *kinetics.Model, params kinetics.SimulationParams) {
	b.WriteString("&reactions\n\n")
	for _, rxn := range model.Reactions {
		fmt.Fprintf(b, "AR; %s => %s;%-10.2e ; %-10.2e ; %-10v ; %-10v \n",
			formatSide(rxn.Reactants, false),
			formatSide(rxn.Products, true),
			params.PreExponential, params.PreExponential,
			rxn.EaForward, rxn.EaBackward)
	}
}

// formatSide renders up to three species with the fixed-width padding the
// solver's parser was written against.
func formatSide(names []string, product bool) string {
	wrapped := make([]string, len(names))
	for i, n := range names {
		wrapped[i] = wrap(n)
	}

	switch len(wrapped) {
	case 1:
		if product {
			return fmt.Sprintf("%-15s%-23s", wrapped[0], "")
		}
		return fmt.Sprintf("%-15s %-17s", wrapped[0], "")
	case 2:
		if product {
			return fmt.Sprintf("%-15s + %-20s", wrapped[0], wrapped[1])
		}
		return fmt.Sprintf("%-15s + %-15s", wrapped[0], wrapped[1])
	default:
		if product {
			return fmt.Sprintf("%-10s + %-15s + %-7s", wrapped[0], wrapped[1], wrapped[2])
		}
		return fmt.Sprintf("%-15s + %-15s + %-5s", wrapped[0], wrapped[1], wrapped[2])
	}
}

// wrap encloses a reaction-side token in the braces the solver grammar
// requires. Every token is wrapped, the bare site included; compound
// declarations stay unwrapped.
func wrap(name string) string {
	return "{" + name + "}"
}

func (w *Writer) writeSettings(b *strings.Builder, params kinetics.SimulationParams) {
	b.WriteString("\n\n&settings\n")
	b.WriteString("TYPE = SEQUENCERUN\n")
	b.WriteString("USETIMESTAMP = 0\n")
	fmt.Fprintf(b, "PRESSURE = %v\n", params.Pressure)
	b.WriteString("POTAXIS=1\n")
	b.WriteString("DEBUG=0\n")
	b.WriteString("NETWORK_RATES=1\n")
	b.WriteString("NETWORK_FLUX=1\n")
}

func (w *Writer) writeRuns(b *strings.Builder, params kinetics.SimulationParams) {
	b.WriteString("\n\n&runs\n")
	b.WriteString("# Temp; Potential;Time;AbsTol;RelTol\n")
	fmt.Fprintf(b, "%-5v;%-5v;%-5.2e;%-5v;%-5v",
		params.Temperature, params.Potential, params.Time, params.AbsTol, params.RelTol)
}
