package engine

import "time"

// Signal carries the detector observations the scorer weighs.
type Signal struct {
	// Error-based: DBMS is the engine named by the matched signature.
	// VendorError is true when that signature is vendor specific;
	// StatusOnly when only a 500 status gave the injection away.
	DBMS        string
	VendorError bool
	StatusOnly  bool

	// Boolean: number of concurring rounds.
	Rounds int

	// Time: observed extra delay and the configured threshold.
	Delay     time.Duration
	Threshold time.Duration

	// Union: whether a marker came back in the page.
	Reflected bool
}

// Score maps a technique and its signal to a risk level and a 0-10 score.
// It is pure: equal inputs always give equal outputs.
func Score(t Technique, s Signal) (Risk, float64) {
	switch t {
	case TechniqueError:
		switch {
		case s.StatusOnly:
			return RiskHigh, 7.0
		case s.VendorError:
			return RiskCritical, 9.0
		default:
			return RiskHigh, 7.5
		}
	case TechniqueBoolean:
		if s.Rounds >= 3 {
			return RiskHigh, 7.5
		}
		return RiskMedium, 5.5
	case TechniqueTime:
		if s.Threshold > 0 && s.Delay >= 2*s.Threshold {
			return RiskHigh, 8.0
		}
		return RiskHigh, 7.5
	case TechniqueUnion:
		if s.Reflected {
			return RiskCritical, 9.5
		}
		return RiskHigh, 8.0
	default:
		return RiskLow, 2.0
	}
}
