package scoring

import (
	"fmt"
	"math"

	"github.com/netwatch/netwatch/internal/metrics"
)

// weightEpsilon is the tolerance used when checking that weights sum to 1.0.
const weightEpsilon = 1e-6

// Weights controls how the five sub-scores blend into the overall score.
// All weights are non-negative and must sum to 1.0. Construct via
// NewWeights so an invalid set is rejected before any scoring happens.
type Weights struct {
	Latency      float64 `yaml:"latency" json:"latency"`
	Jitter       float64 `yaml:"jitter" json:"jitter"`
	PacketLoss   float64 `yaml:"packet_loss" json:"packet_loss"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
	Availability float64 `yaml:"availability" json:"availability"`
}

// DefaultWeights returns the stock blend, favoring latency and jitter.
func DefaultWeights() Weights {
	return Weights{
		Latency:      0.40,
		Jitter:       0.25,
		PacketLoss:   0.20,
		Consistency:  0.10,
		Availability: 0.05,
	}
}

// NewWeights validates a caller-supplied weight set.
func NewWeights(latency, jitter, loss, consistency, availability float64) (Weights, error) {
	w := Weights{
		Latency:      latency,
		Jitter:       jitter,
		PacketLoss:   loss,
		Consistency:  consistency,
		Availability: availability,
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate rejects negative weights and sets that do not sum to 1.0.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"latency", w.Latency},
		{"jitter", w.Jitter},
		{"packet_loss", w.PacketLoss},
		{"consistency", w.Consistency},
		{"availability", w.Availability},
	} {
		if f.value < 0 {
			return fmt.Errorf("scoring: weight %s is negative (%v)", f.name, f.value)
		}
	}
	sum := w.Latency + w.Jitter + w.PacketLoss + w.Consistency + w.Availability
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("scoring: weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Suitability rates an endpoint for specific application profiles. Each
// score is a fixed recombination of the same sub-scores used for the
// overall score, on the same 0-100 scale.
type Suitability struct {
	Gaming    float64 `json:"gaming"`
	Streaming float64 `json:"streaming"`
	VoIP      float64 `json:"voip"`
	Browsing  float64 `json:"browsing"`
	Downloads float64 `json:"downloads"`
}

// Components is the full scoring result for one endpoint window.
type Components struct {
	EndpointID string `json:"endpoint_id"`

	LatencyScore      float64 `json:"latency_score"`
	JitterScore       float64 `json:"jitter_score"`
	PacketLossScore   float64 `json:"packet_loss_score"`
	ConsistencyScore  float64 `json:"consistency_score"`
	AvailabilityScore float64 `json:"availability_score"`

	Overall     float64     `json:"overall"`
	Grade       string      `json:"grade"`
	Category    string      `json:"category"`
	Suitability Suitability `json:"suitability"`

	// Scored is false when the window held no samples. The numeric
	// fields are zero and Grade/Category are "-" in that case.
	Scored bool `json:"scored"`
}

// Unscored is the sentinel returned for a window with no samples.
func Unscored(endpointID string) Components {
	return Components{EndpointID: endpointID, Grade: "-", Category: "-"}
}

// Score derives the full component set from one aggregated snapshot.
// It never fails: degenerate input yields the unscored sentinel, and
// every numeric output is clamped to [0,100].
func Score(m metrics.Aggregated, w Weights) Components {
	if m.Samples == 0 {
		return Unscored(m.EndpointID)
	}

	latency := clamp(100 - m.AvgMs/2)
	jitter := clamp(100 - m.JitterMs*2)
	loss := clamp(100 - m.LossPct*10)
	consistency := clamp(100 - m.StdDevMs)
	availability := clamp(m.SuccessRate)

	overall := clamp(w.Latency*latency +
		w.Jitter*jitter +
		w.PacketLoss*loss +
		w.Consistency*consistency +
		w.Availability*availability)

	return Components{
		EndpointID:        m.EndpointID,
		LatencyScore:      latency,
		JitterScore:       jitter,
		PacketLossScore:   loss,
		ConsistencyScore:  consistency,
		AvailabilityScore: availability,
		Overall:           overall,
		Grade:             grade(overall),
		Category:          category(overall),
		Suitability: Suitability{
			Gaming:    clamp(0.50*latency + 0.30*jitter + 0.20*loss),
			Streaming: clamp(0.40*consistency + 0.30*availability + 0.30*loss),
			VoIP:      clamp(0.40*latency + 0.30*jitter + 0.30*loss),
			Browsing:  clamp(0.30*latency + 0.30*availability + 0.40*consistency),
			Downloads: clamp(0.50*availability + 0.30*loss + 0.20*consistency),
		},
		Scored: true,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// grade maps an overall score to its letter, in five-point steps from
// A+ at 95 down to F below 40.
func grade(score float64) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "A-"
	case score >= 80:
		return "B+"
	case score >= 75:
		return "B"
	case score >= 70:
		return "B-"
	case score >= 65:
		return "C+"
	case score >= 60:
		return "C"
	case score >= 55:
		return "C-"
	case score >= 50:
		return "D+"
	case score >= 45:
		return "D"
	case score >= 40:
		return "D-"
	default:
		return "F"
	}
}

func category(score float64) string {
	switch {
	case score >= 90:
		return "Premium"
	case score >= 80:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Poor"
	}
}
