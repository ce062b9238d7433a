package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"mixevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions on a record.
func Stamp(v *model.VersionedRecord) {
	v.SchemaVersion = CurrentSchemaVersion
	v.CodecVersion = CurrentCodecVersion
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.Best.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("best mixture: %w", err)
	}
	return run, nil
}

func EncodeMixture(m model.MixtureRecord) ([]byte, error) {
	return json.Marshal(m)
}

func DecodeMixture(data []byte) (model.MixtureRecord, error) {
	var mixture model.MixtureRecord
	if err := json.Unmarshal(data, &mixture); err != nil {
		return model.MixtureRecord{}, err
	}
	if err := checkVersion(mixture.VersionedRecord); err != nil {
		return model.MixtureRecord{}, err
	}
	return mixture, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

func cloneRun(r model.RunRecord) model.RunRecord {
	out := r
	out.Proto = append([]model.GeneRecord(nil), r.Proto...)
	out.Best.Experts = make([]model.ExpertRecord, len(r.Best.Experts))
	for i, e := range r.Best.Experts {
		e.Genes = append([]model.GeneRecord(nil), e.Genes...)
		out.Best.Experts[i] = e
	}
	out.FitnessHistory = append([]float64(nil), r.FitnessHistory...)
	out.DiversityHistory = append([]float64(nil), r.DiversityHistory...)
	out.BestEverHistory = append([]float64(nil), r.BestEverHistory...)
	out.Generations = append([]model.GenerationRecord(nil), r.Generations...)
	return out
}
