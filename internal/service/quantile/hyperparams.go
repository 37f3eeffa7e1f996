package quantile

import domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"

// Params are the boosting hyperparameters of one horizon.
type Params struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Subsample    float64
}

// ParamsForHorizon returns horizon-tuned hyperparameters. Short horizons
// have dense, fresh labels and take shallow fast-learning settings; longer
// horizons carry sparser, noisier labels and get conservative regularized
// settings.
func ParamsForHorizon(h domrepo.Horizon) Params {
	switch h {
	case domrepo.H1D:
		return Params{Trees: 150, MaxDepth: 3, MinLeaf: 20, LearningRate: 0.10, Subsample: 0.9}
	case domrepo.H5D:
		return Params{Trees: 120, MaxDepth: 4, MinLeaf: 30, LearningRate: 0.05, Subsample: 0.8}
	case domrepo.H20D:
		return Params{Trees: 100, MaxDepth: 4, MinLeaf: 40, LearningRate: 0.03, Subsample: 0.7}
	default:
		return Params{Trees: 120, MaxDepth: 3, MinLeaf: 25, LearningRate: 0.05, Subsample: 0.8}
	}
}
