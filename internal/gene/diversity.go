package gene

import "gonum.org/v1/gonum/stat"

// Diversity is the mean over gene positions of the variance of the
// range-normalized gene values across the given chromosomes. Chromosomes that
// do not share the first chromosome's schema are skipped.
func Diversity(chromosomes []Chromosome) float64 {
	if len(chromosomes) < 2 {
		return 0
	}
	ref := chromosomes[0]
	if ref.Len() == 0 {
		return 0
	}
	columns := make([][]float64, ref.Len())
	for _, c := range chromosomes {
		if !c.SameSchema(ref) {
			continue
		}
		for i, g := range c.genes {
			columns[i] = append(columns[i], g.Normalized())
		}
	}
	if len(columns[0]) < 2 {
		return 0
	}
	total := 0.0
	for _, column := range columns {
		_, variance := stat.PopMeanVariance(column, nil)
		total += variance
	}
	return total / float64(len(columns))
}
