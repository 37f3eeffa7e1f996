package quantile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
)

// bundleMeta is the metadata artifact of a saved regressor. Each quantile
// model is published as its own artifact; the metadata maps quantile keys to
// their opaque artifact IDs.
type bundleMeta struct {
	Horizon      string            `json:"horizon"`
	Quantiles    []float64         `json:"quantiles"`
	FeatureOrder []string          `json:"feature_order"`
	TrainedAt    time.Time         `json:"trained_at"`
	Version      string            `json:"version"`
	Models       map[string]string `json:"models"`
}

// Save publishes the trained bundle and returns the metadata artifact ID.
// Saving before training is fatal.
func (r *Regressor) Save(ctx context.Context, store domrepo.ArtifactStore, version string) (string, error) {
	if r.ensembles == nil {
		return "", ErrNotTrained
	}

	meta := bundleMeta{
		Horizon:      string(r.horizon),
		Quantiles:    Quantiles,
		FeatureOrder: r.featureOrder,
		TrainedAt:    r.trainedAt,
		Version:      version,
		Models:       make(map[string]string, len(Quantiles)),
	}
	for _, tau := range Quantiles {
		blob, err := json.Marshal(r.ensembles[tau])
		if err != nil {
			return "", fmt.Errorf("encode %s model: %w", quantileKey(tau), err)
		}
		kind := fmt.Sprintf("quantile_%s_%s", r.horizon, quantileKey(tau))
		id, err := store.Publish(ctx, kind, version, blob)
		if err != nil {
			return "", fmt.Errorf("publish %s model: %w", quantileKey(tau), err)
		}
		meta.Models[quantileKey(tau)] = id
	}

	blob, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode bundle meta: %w", err)
	}
	id, err := store.Publish(ctx, fmt.Sprintf("quantile_%s_meta", r.horizon), version, blob)
	if err != nil {
		return "", fmt.Errorf("publish bundle meta: %w", err)
	}
	r.version = version
	return id, nil
}

// LoadBundle restores a saved bundle from its metadata artifact ID.
func LoadBundle(ctx context.Context, store domrepo.ArtifactStore, metaID string) (*Regressor, error) {
	blob, err := store.Load(ctx, metaID)
	if err != nil {
		return nil, fmt.Errorf("load bundle meta %s: %w", metaID, err)
	}
	var meta bundleMeta
	if err := json.Unmarshal(blob, &meta); err != nil {
		return nil, fmt.Errorf("decode bundle meta %s: %w", metaID, err)
	}

	r := &Regressor{
		horizon:      domrepo.Horizon(meta.Horizon),
		params:       ParamsForHorizon(domrepo.Horizon(meta.Horizon)),
		featureOrder: meta.FeatureOrder,
		trainedAt:    meta.TrainedAt,
		version:      meta.Version,
		ensembles:    make(map[float64]*ensemble, len(meta.Quantiles)),
	}
	for _, tau := range meta.Quantiles {
		id, ok := meta.Models[quantileKey(tau)]
		if !ok {
			return nil, fmt.Errorf("bundle %s: missing %s model reference", metaID, quantileKey(tau))
		}
		mb, err := store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s model: %w", quantileKey(tau), err)
		}
		var e ensemble
		if err := json.Unmarshal(mb, &e); err != nil {
			return nil, fmt.Errorf("decode %s model: %w", quantileKey(tau), err)
		}
		r.ensembles[tau] = &e
	}
	return r, nil
}
