package repository

// Horizon is the forward window over which a return outcome is measured.
type Horizon string

const (
	H1D  Horizon = "1d"
	H5D  Horizon = "5d"
	H20D Horizon = "20d"
)

// AllHorizons lists the horizons every event must be labeled on to enter the
// cross-horizon stats aggregate.
func AllHorizons() []Horizon { return []Horizon{H1D, H5D, H20D} }

// TradingDays returns the number of post-event trading closes the horizon
// spans.
func (h Horizon) TradingDays() int {
	switch h {
	case H1D:
		return 1
	case H5D:
		return 5
	case H20D:
		return 20
	default:
		return 0
	}
}

// IsValidHorizon returns true if h is a supported horizon.
func IsValidHorizon(h Horizon) bool {
	switch h {
	case H1D, H5D, H20D:
		return true
	default:
		return false
	}
}

// DefaultHorizon returns the default horizon.
func DefaultHorizon() Horizon { return H1D }

// NormalizeHorizon converts a raw string to a valid horizon (or default).
func NormalizeHorizon(s string) Horizon {
	if s == "" {
		return DefaultHorizon()
	}
	h := Horizon(s)
	if IsValidHorizon(h) {
		return h
	}
	return DefaultHorizon()
}
