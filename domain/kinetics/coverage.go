package kinetics

// CoverageSnapshot maps surface-species names to final coverage fractions
// as produced by one solver invocation. The free site appears under "*".
type CoverageSnapshot map[string]float64

// Clone returns an independent copy of the snapshot
func (c CoverageSnapshot) Clone() CoverageSnapshot {
	out := make(CoverageSnapshot, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// SanitizeValue clamps negative or sub-epsilon values (numerical noise from
// the solver) to zero and caps at max.
func SanitizeValue(x, eps, max float64) float64 {
	if x < eps {
		return 0
	}
	if x > max {
		return max
	}
	return x
}

// Sanitize applies SanitizeValue to every entry, returning a new snapshot
func (c CoverageSnapshot) Sanitize(eps, max float64) CoverageSnapshot {
	out := make(CoverageSnapshot, len(c))
	for k, v := range c {
		out[k] = SanitizeValue(v, eps, max)
	}
	return out
}

// Rebalance enforces the site balance over the given adsorbates:
// theta_* = max(0, 1 - sum(theta_i)). The adsorbate entries are sanitized
// first so noise never inflates the occupied total.
func (c CoverageSnapshot) Rebalance(adsorbates []string, eps, max float64) CoverageSnapshot {
	out := c.Sanitize(eps, max)

	total := 0.0
	for _, name := range adsorbates {
		total += out[name]
	}
	free := 1.0 - total
	if free < 0 {
		free = 0
	}
	out[FreeSite] = SanitizeValue(free, eps, max)
	return out
}
