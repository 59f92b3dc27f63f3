package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"emkm/domain/kinetics"
	"emkm/internal"
	"emkm/internal/errors"
)

// Sheet names the solver workbook must provide
const (
	SheetReactions   = "Reactions"
	SheetEnvironment = "Local Environment"
	SheetSpecies     = "Input-Output Species"
)

// Reader parses a solver workbook into a kinetics model
type Reader struct{}

// NewReader creates a workbook reader
func NewReader() *Reader {
	return &Reader{}
}

// Load reads the three required sheets and assembles the model.
// Blank trailing rows and columns are tolerated; missing sheets or required
// cells fail with a PARSE_ERROR.
func (r *Reader) Load(ctx context.Context, path string) (*kinetics.Model, error) {
	start := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeParse, fmt.Errorf("failed to open workbook %s: %w", path, err))
	}
	defer f.Close()

	internal.Debugf("[Workbook] %s opened in %.2fms", path, float64(time.Since(start).Nanoseconds())/1e6)

	reactions, err := r.readReactions(f)
	if err != nil {
		return nil, err
	}

	potential, pH, pressure, err := r.readEnvironment(f)
	if err != nil {
		return nil, err
	}

	gases, err := r.readSpecies(f)
	if err != nil {
		return nil, err
	}

	var adsorbates []kinetics.Species
	for _, name := range kinetics.Adsorbates(reactions) {
		adsorbates = append(adsorbates, kinetics.Species{
			Name:     name,
			Phase:    kinetics.PhaseAdsorbate,
			Activity: 0,
		})
	}

	internal.Infof("[Workbook] %s parsed: %d reactions, %d gases, %d adsorbates",
		path, len(reactions), len(gases), len(adsorbates))

	return &kinetics.Model{
		Reactions:  reactions,
		Gases:      gases,
		Adsorbates: adsorbates,
		Potential:  potential,
		PH:         pH,
		Pressure:   pressure,
	}, nil
}

func (r *Reader) readReactions(f *excelize.File) ([]kinetics.Reaction, error) {
	rows, err := f.GetRows(SheetReactions)
	if err != nil {
		return nil, errors.ParseError(fmt.Sprintf("missing sheet %q", SheetReactions))
	}
	if len(rows) < 2 {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q has no data rows", SheetReactions))
	}

	cols := headerIndex(rows[0])
	rxnCol, ok := cols["reactions"]
	if !ok {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q has no Reactions column", SheetReactions))
	}
	gfCol := cols["g_f"]
	gbCol := cols["g_b"]
	delCol, hasDel := cols["delg_rxn"]

	// The DelG column is consumed as a compacted sequence: blanks are
	// skipped, and each barrier-less reaction takes the next value.
	var delG []float64
	if hasDel {
		for _, row := range rows[1:] {
			raw := cell(row, delCol)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.ParseError(fmt.Sprintf("bad DelG_rxn value %q", raw))
			}
			delG = append(delG, v)
		}
	}

	var reactions []kinetics.Reaction
	delIdx := 0
	for i, row := range rows[1:] {
		raw := strings.TrimSpace(cell(row, rxnCol))
		if raw == "" {
			continue // trailing blank row
		}

		reactants, products, err := parseReactionString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "reaction row %d", i+2)
		}

		ea, err := cellFloat(row, gfCol)
		if err != nil {
			return nil, errors.ParseError(fmt.Sprintf("reaction row %d: bad G_f: %v", i+2, err))
		}
		eb, err := cellFloat(row, gbCol)
		if err != nil {
			return nil, errors.ParseError(fmt.Sprintf("reaction row %d: bad G_b: %v", i+2, err))
		}

		// Barrier-less steps get their barrier from the reaction free
		// energy: uphill reactions put it on the forward direction,
		// downhill on the backward.
		if ea == 0 && eb == 0 && delIdx < len(delG) {
			d := delG[delIdx]
			if d > 0 {
				ea = d
			} else {
				eb = -d
			}
			delIdx++
		}

		reactions = append(reactions, kinetics.Reaction{
			Raw:        raw,
			Reactants:  reactants,
			Products:   products,
			EaForward:  ea,
			EaBackward: eb,
		})
	}

	if len(reactions) == 0 {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q contains no reactions", SheetReactions))
	}
	return reactions, nil
}

func (r *Reader) readEnvironment(f *excelize.File) (potential, pH, pressure float64, err error) {
	rows, rowsErr := f.GetRows(SheetEnvironment)
	if rowsErr != nil {
		return 0, 0, 0, errors.ParseError(fmt.Sprintf("missing sheet %q", SheetEnvironment))
	}
	if len(rows) < 2 {
		return 0, 0, 0, errors.ParseError(fmt.Sprintf("sheet %q must have a header row and a value row", SheetEnvironment))
	}

	cols := headerIndex(rows[0])
	values := rows[1]

	// Header lookup with the conventional fixed positions (V at B2, pH at
	// C2, Pressure at D2) as fallback.
	vCol := colOrDefault(cols, "v", 1)
	phCol := colOrDefault(cols, "ph", 2)
	pCol := colOrDefault(cols, "pressure", 3)

	potential, err = requiredFloat(values, vCol, "potential (B2)")
	if err != nil {
		return 0, 0, 0, err
	}
	pH, err = requiredFloat(values, phCol, "pH (C2)")
	if err != nil {
		return 0, 0, 0, err
	}
	pressure, err = cellFloat(values, pCol)
	if err != nil {
		return 0, 0, 0, errors.ParseError(fmt.Sprintf("bad Pressure value: %v", err))
	}

	return potential, pH, pressure, nil
}

func (r *Reader) readSpecies(f *excelize.File) ([]kinetics.Species, error) {
	rows, err := f.GetRows(SheetSpecies)
	if err != nil {
		return nil, errors.ParseError(fmt.Sprintf("missing sheet %q", SheetSpecies))
	}
	if len(rows) < 2 {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q has no data rows", SheetSpecies))
	}

	cols := headerIndex(rows[0])
	nameCol, ok := cols["species"]
	if !ok {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q has no Species column", SheetSpecies))
	}
	concCol := cols["input mkmcxx"]

	var species []kinetics.Species
	seen := make(map[string]bool)
	for i, row := range rows[1:] {
		name := strings.TrimSpace(cell(row, nameCol))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, errors.ParseError(fmt.Sprintf("duplicate species %q in sheet %q (row %d)", name, SheetSpecies, i+2))
		}
		seen[name] = true

		conc, err := cellFloat(row, concCol)
		if err != nil {
			return nil, errors.ParseError(fmt.Sprintf("species %q: bad concentration: %v", name, err))
		}

		species = append(species, kinetics.Species{
			Name:     name,
			Phase:    kinetics.PhaseGas,
			Activity: conc,
		})
	}

	if len(species) == 0 {
		return nil, errors.ParseError(fmt.Sprintf("sheet %q contains no species", SheetSpecies))
	}
	return species, nil
}

// parseReactionString splits "A + B → C + D" (or "->") into sides
func parseReactionString(raw string) ([]string, []string, error) {
	var lhs, rhs string
	switch {
	case strings.Contains(raw, "→"):
		parts := strings.SplitN(raw, "→", 2)
		lhs, rhs = parts[0], parts[1]
	case strings.Contains(raw, "->"):
		parts := strings.SplitN(raw, "->", 2)
		lhs, rhs = parts[0], parts[1]
	default:
		return nil, nil, errors.ParseError(fmt.Sprintf("reaction %q has no arrow", raw))
	}

	reactants := splitSide(lhs)
	products := splitSide(rhs)
	if len(reactants) == 0 || len(products) == 0 {
		return nil, nil, errors.ParseError(fmt.Sprintf("reaction %q has an empty side", raw))
	}
	return reactants, products, nil
}

func splitSide(side string) []string {
	var out []string
	for _, part := range strings.Split(side, "+") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// headerIndex maps lowercased trimmed header names to column indexes
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

func colOrDefault(cols map[string]int, key string, def int) int {
	if i, ok := cols[key]; ok {
		return i
	}
	return def
}

// cell returns the trimmed cell at index i, or "" past the row's end
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// cellFloat parses the cell as a float; blank cells read as zero
func cellFloat(row []string, i int) (float64, error) {
	raw := cell(row, i)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func requiredFloat(row []string, i int, what string) (float64, error) {
	raw := cell(row, i)
	if raw == "" {
		return 0, errors.ParseError(fmt.Sprintf("missing %s in sheet %q", what, SheetEnvironment))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.ParseError(fmt.Sprintf("bad %s value %q", what, raw))
	}
	return v, nil
}
