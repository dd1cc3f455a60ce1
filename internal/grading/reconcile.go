package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultFeedback    = "Evaluation completed. Review the per-question breakdown for details."
	blankPaperFeedback = "The paper appears to be blank or unattempted. No marks were awarded; please review manually."
	placeholderText    = "N/A"
)

// ReconcileInput bundles everything the reconciler needs for one pass.
type ReconcileInput struct {
	Response       *ModelResponse
	RequestedTotal float64
	ExamType       ExamType
	BlankPaper     bool
}

// ReconcileOutput is the normalized result plus non-fatal warnings about
// corrections applied along the way.
type ReconcileOutput struct {
	Summary   Summary
	Questions []Question
	Warnings  []string
}

// Reconcile recomputes the authoritative totals from per-question marks,
// correcting impossible numbers in place. Fine-grained data wins over the
// model's own summary; the originally requested total is a last resort.
// Running it on its own output is a fixed point.
func Reconcile(in ReconcileInput) ReconcileOutput {
	var out ReconcileOutput

	calculatedAwarded := 0.0
	calculatedPossible := 0.0
	anyParseable := false

	for i, question := range in.Response.Questions {
		normalized := normalizeQuestion(question, i)

		awarded, possible, ok := ParseMarks(normalized.Marks)
		if !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: unparseable marks %q reset to 0/0", normalized.Heading, question.Marks))
			awarded, possible = 0, 0
		} else {
			anyParseable = true
			if awarded > possible {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: awarded %s clamped to possible %s", normalized.Heading, formatNumber(awarded), formatNumber(possible)))
				awarded = possible
			}
		}

		// Accumulate the rounded values that get re-serialized, so a second
		// pass over the output reproduces the same totals.
		awarded = round2(awarded)
		possible = round2(possible)
		normalized.Marks = FormatMarks(awarded, possible)
		calculatedAwarded += awarded
		calculatedPossible += possible

		out.Questions = append(out.Questions, normalized)
	}

	calculatedAwarded = round2(calculatedAwarded)
	calculatedPossible = round2(calculatedPossible)

	var totalAwarded, totalPossible float64
	switch {
	case anyParseable && calculatedPossible > 0:
		totalAwarded = calculatedAwarded
		totalPossible = calculatedPossible
	case in.Response.Summary != nil && in.Response.Summary.TotalAwarded != nil && in.Response.Summary.TotalPossible != nil:
		totalAwarded = round2(*in.Response.Summary.TotalAwarded)
		totalPossible = round2(*in.Response.Summary.TotalPossible)
	default:
		totalAwarded = 0
		totalPossible = in.RequestedTotal
	}

	if totalAwarded < 0 {
		totalAwarded = 0
	}
	if totalPossible < 0 {
		totalPossible = 0
	}
	if totalAwarded > totalPossible {
		out.Warnings = append(out.Warnings, fmt.Sprintf("total awarded %s clamped to total possible %s", formatNumber(totalAwarded), formatNumber(totalPossible)))
		totalAwarded = totalPossible
	}

	percentage := Percentage(totalAwarded, totalPossible)

	feedback := defaultFeedback
	if in.Response.Summary != nil && strings.TrimSpace(in.Response.Summary.Feedback) != "" {
		feedback = strings.TrimSpace(in.Response.Summary.Feedback)
	}
	if in.BlankPaper {
		feedback = blankPaperFeedback
	}

	out.Summary = Summary{
		TotalAwarded:  totalAwarded,
		TotalPossible: totalPossible,
		Percentage:    percentage,
		Grade:         MapGrade(percentage, in.ExamType),
		Feedback:      feedback,
	}

	return out
}

func normalizeQuestion(question Question, index int) Question {
	normalized := question

	if normalized.PageNumber < 1 {
		normalized.PageNumber = 1
	}
	if strings.TrimSpace(normalized.Heading) == "" {
		normalized.Heading = fmt.Sprintf("Question %d", index+1)
	}
	normalized.QuestionText = orPlaceholder(normalized.QuestionText)
	normalized.Transcription = orPlaceholder(normalized.Transcription)
	normalized.Evaluation = orPlaceholder(normalized.Evaluation)
	normalized.Justification = orPlaceholder(normalized.Justification)

	return normalized
}

func orPlaceholder(text string) string {
	if strings.TrimSpace(text) == "" {
		return placeholderText
	}
	return strings.TrimSpace(text)
}

// FormatMarks renders the canonical "<awarded>/<possible>" form with values
// rounded to two decimal places and trailing zeros trimmed.
func FormatMarks(awarded, possible float64) string {
	return formatNumber(awarded) + "/" + formatNumber(possible)
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(round2(value), 'f', -1, 64)
}

// Percentage computes awarded/possible x 100 rounded to one decimal place,
// and 0 whenever possible is 0.
func Percentage(awarded, possible float64) float64 {
	if possible <= 0 {
		return 0
	}
	return round1(awarded / possible * 100)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
