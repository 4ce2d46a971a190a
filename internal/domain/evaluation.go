package domain

// Score bounds for every evaluation dimension.
const (
	MinScore     = 1
	MaxScore     = 10
	NeutralScore = 7
)

// NeutralFeedback accompanies the fallback evaluation.
const NeutralFeedback = "Session completed. Keep practicing to improve your negotiation skills."

// Evaluation is scored feedback on a practice transcript. It is produced on
// demand and never persisted.
type Evaluation struct {
	Tone              int    `json:"tone"`
	ObjectionHandling int    `json:"objectionHandling"`
	FactUsage         int    `json:"factUsage"`
	Overall           int    `json:"overall"`
	Feedback          string `json:"feedback"`
}

// NeutralEvaluation is returned whenever a real score cannot be produced.
func NeutralEvaluation() Evaluation {
	return Evaluation{
		Tone:              NeutralScore,
		ObjectionHandling: NeutralScore,
		FactUsage:         NeutralScore,
		Overall:           NeutralScore,
		Feedback:          NeutralFeedback,
	}
}

// ValidScore reports whether n is inside the scoring range.
func ValidScore(n int) bool {
	return n >= MinScore && n <= MaxScore
}
