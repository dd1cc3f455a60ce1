package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// structuralSchema is the minimal shape a model response must have before
// semantic validation is worth attempting: an object with a non-empty
// questions array of objects. Everything finer-grained is an issue, not a
// rejection.
const structuralSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "object"}
    },
    "summary": {"type": "object"}
  }
}`

var responseSchema = jsonschema.MustCompileString("model_response.json", structuralSchema)

var markPattern = regexp.MustCompile(`^\d+(\.\d+)?/\d+(\.\d+)?$`)

var blankMarkers = []string{"blank", "no answer", "not attempted", "empty"}

// CheckStructure validates the extracted payload against the structural
// schema. A failure means the response is unusable, not merely flawed.
func CheckStructure(payload []byte) error {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if err := responseSchema.Validate(document); err != nil {
		return fmt.Errorf("model response structure: %w", err)
	}

	return nil
}

const minTextLength = 3

// Validate inspects a decoded model response and classifies it. Individual
// flaws are collected as issues; the response stays usable while the issue
// count is within the tolerance or the paper is blank.
func Validate(response *ModelResponse, requestedTotal float64, thresholds Thresholds) ValidationResult {
	if response == nil || len(response.Questions) == 0 {
		return ValidationResult{
			IsValid: false,
			Issues:  []string{"response has no questions"},
		}
	}

	var issues []string
	blankCount := 0
	sumPossible := 0.0
	anyParseable := false

	for i, question := range response.Questions {
		label := question.Heading
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("question %d", i+1)
		}

		awarded, possible, ok := ParseMarks(question.Marks)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("%s: invalid marks format %q", label, question.Marks))
		case awarded > possible:
			issues = append(issues, fmt.Sprintf("%s: awarded %s exceeds possible %s", label, formatNumber(awarded), formatNumber(possible)))
			anyParseable = true
			sumPossible += possible
		default:
			anyParseable = true
			sumPossible += possible
		}

		if len(strings.TrimSpace(question.QuestionText)) < minTextLength {
			issues = append(issues, fmt.Sprintf("%s: question text missing or trivial", label))
		}
		if len(strings.TrimSpace(question.Evaluation)) < minTextLength {
			issues = append(issues, fmt.Sprintf("%s: evaluation missing or trivial", label))
		}
		if len(strings.TrimSpace(question.Justification)) < minTextLength {
			issues = append(issues, fmt.Sprintf("%s: justification missing or trivial", label))
		}

		if isBlankAnswer(question) {
			blankCount++
		}
	}

	isBlankPaper := float64(blankCount) > thresholds.BlankPaperRatio*float64(len(response.Questions))

	if anyParseable && requestedTotal > 0 && sumPossible > 0 {
		divergence := math.Abs(sumPossible-requestedTotal) / requestedTotal
		if divergence > thresholds.MarksMismatchRatio {
			issues = append(issues, fmt.Sprintf(
				"sum of possible marks %s diverges from requested total %s",
				formatNumber(sumPossible), formatNumber(requestedTotal)))
		}
	}

	return ValidationResult{
		IsValid:      len(issues) <= thresholds.MaxIssues || isBlankPaper,
		Issues:       issues,
		IsBlankPaper: isBlankPaper,
	}
}

// ParseMarks splits a canonical "<awarded>/<possible>" string. ok is false
// when the string does not match the canonical form.
func ParseMarks(marks string) (awarded, possible float64, ok bool) {
	trimmed := strings.TrimSpace(marks)
	if !markPattern.MatchString(trimmed) {
		return 0, 0, false
	}

	parts := strings.SplitN(trimmed, "/", 2)
	awarded, errA := strconv.ParseFloat(parts[0], 64)
	possible, errP := strconv.ParseFloat(parts[1], 64)
	if errA != nil || errP != nil {
		return 0, 0, false
	}

	return awarded, possible, true
}

func isBlankAnswer(question Question) bool {
	transcription := strings.ToLower(question.Transcription)
	evaluation := strings.ToLower(question.Evaluation)

	for _, marker := range blankMarkers {
		if strings.Contains(transcription, marker) || strings.Contains(evaluation, marker) {
			return true
		}
	}

	return false
}
