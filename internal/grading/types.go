package grading

import "strings"

// ExamType selects the grading scheme applied to a paper.
type ExamType string

const (
	ExamTypeIELTS    ExamType = "ielts"
	ExamTypeOLevel   ExamType = "o-level"
	ExamTypeALevel   ExamType = "a-level"
	ExamTypeStandard ExamType = "standard"
)

// ParseExamType normalizes a caller-supplied exam type string. Unknown
// values map to the standard scheme.
func ParseExamType(value string) ExamType {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")

	switch normalized {
	case "ielts":
		return ExamTypeIELTS
	case "o-level", "olevel", "o-levels":
		return ExamTypeOLevel
	case "a-level", "alevel", "a-levels":
		return ExamTypeALevel
	default:
		return ExamTypeStandard
	}
}

// Question is one identified exam question in a graded paper.
type Question struct {
	PageNumber    int    `json:"pageNumber"`
	Heading       string `json:"heading"`
	QuestionText  string `json:"questionText"`
	Transcription string `json:"transcription"`
	Evaluation    string `json:"evaluation"`
	Justification string `json:"justification"`
	Marks         string `json:"marks"`
}

// Grade pairs a band label with a display color tag.
type Grade struct {
	Grade string `json:"grade"`
	Color string `json:"color"`
}

// Summary holds the authoritative totals derived by the reconciler. The
// model's self-reported totals are never trusted verbatim.
type Summary struct {
	TotalAwarded  float64 `json:"totalAwarded"`
	TotalPossible float64 `json:"totalPossible"`
	Percentage    float64 `json:"percentage"`
	Grade         Grade   `json:"grade"`
	Feedback      string  `json:"feedback"`
}

// EvaluationData is the full graded artifact returned by the pipeline. It is
// always structurally complete, even on upstream failure.
type EvaluationData struct {
	Summary     Summary    `json:"summary"`
	Questions   []Question `json:"questions"`
	RawResponse string     `json:"rawResponse"`
}

// ModelResponse is the payload shape requested from the grading model.
type ModelResponse struct {
	Questions []Question    `json:"questions"`
	Summary   *ModelSummary `json:"summary,omitempty"`
}

// ModelSummary carries the model's own totals, used only when no
// question-level marks were parseable.
type ModelSummary struct {
	TotalAwarded  *float64 `json:"totalAwarded,omitempty"`
	TotalPossible *float64 `json:"totalPossible,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
}

// ValidationResult classifies a candidate model response.
type ValidationResult struct {
	IsValid      bool
	Issues       []string
	IsBlankPaper bool
}

// Thresholds collects the tunable ratios used during validation.
type Thresholds struct {
	// MaxIssues is the number of non-fatal issues tolerated before a
	// response is declared unusable.
	MaxIssues int
	// BlankPaperRatio is the fraction of blank answers above which the
	// whole paper is treated as blank.
	BlankPaperRatio float64
	// MarksMismatchRatio is the allowed relative divergence between the
	// summed per-question marks and the requested total.
	MarksMismatchRatio float64
}

// DefaultThresholds returns the stock validation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxIssues:          3,
		BlankPaperRatio:    0.8,
		MarksMismatchRatio: 0.5,
	}
}
