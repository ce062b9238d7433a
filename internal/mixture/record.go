package mixture

import (
	"fmt"

	"mixevo/internal/expert"
	"mixevo/internal/gene"
	"mixevo/internal/model"
)

// Record captures the mixture's chromosomes, RNN seeds and fitness. Version
// fields are left for the store to stamp.
func (m *Mixture) Record() model.MixtureRecord {
	rec := model.MixtureRecord{
		ID:      m.ID,
		Fitness: m.fitness,
		Experts: make([]model.ExpertRecord, 0, m.Size()),
	}
	for _, e := range m.RNN {
		rec.Experts = append(rec.Experts, model.ExpertRecord{
			Kind:          string(expert.KindRNN),
			Seed:          e.Seed(),
			Preprocessing: e.Preprocessing().String(),
			Genes:         GeneRecords(e.Chromosome()),
		})
	}
	for _, e := range m.RBF {
		rec.Experts = append(rec.Experts, model.ExpertRecord{
			Kind:          string(expert.KindRBF),
			Preprocessing: e.Preprocessing().String(),
			Degenerate:    e.IsDegenerate(),
			Genes:         GeneRecords(e.Chromosome()),
		})
	}
	return rec
}

// FromRecord rebuilds an untrained mixture. Training it on the same data
// reproduces the recorded experts.
func FromRecord(rec model.MixtureRecord) (*Mixture, error) {
	m := &Mixture{ID: rec.ID}
	for i, er := range rec.Experts {
		c, err := ChromosomeFromRecords(er.Genes)
		if err != nil {
			return nil, fmt.Errorf("expert %d: %w", i, err)
		}
		switch expert.Kind(er.Kind) {
		case expert.KindRNN:
			m.RNN = append(m.RNN, expert.NewRNN(c, er.Seed))
		case expert.KindRBF:
			m.RBF = append(m.RBF, expert.NewRBF(c))
		default:
			return nil, fmt.Errorf("expert %d: unknown kind %q", i, er.Kind)
		}
	}
	if m.Size() == 0 {
		return nil, fmt.Errorf("mixture %s: %w", rec.ID, ErrNoExperts)
	}
	return m, nil
}

func GeneRecords(c gene.Chromosome) []model.GeneRecord {
	out := make([]model.GeneRecord, 0, c.Len())
	for _, g := range c.Genes() {
		out = append(out, model.GeneRecord{
			Name:        g.Name,
			Min:         g.Min,
			Max:         g.Max,
			Granularity: g.Granularity,
			Value:       g.Value,
		})
	}
	return out
}

func ChromosomeFromRecords(records []model.GeneRecord) (gene.Chromosome, error) {
	genes := make([]gene.Gene, 0, len(records))
	for _, r := range records {
		genes = append(genes, gene.Gene{
			Name:        r.Name,
			Min:         r.Min,
			Max:         r.Max,
			Granularity: r.Granularity,
			Value:       r.Value,
		})
	}
	c, err := gene.NewChromosome(genes...)
	if err != nil {
		return gene.Chromosome{}, err
	}
	if err := c.Validate(); err != nil {
		return gene.Chromosome{}, err
	}
	return c, nil
}
