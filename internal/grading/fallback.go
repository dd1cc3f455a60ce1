package grading

import "fmt"

// Fallback builds a structurally complete placeholder evaluation used when
// the model call fails, its output cannot be parsed, or validation declares
// it unusable. Downstream storage and display code never sees a second
// error shape.
func Fallback(requestedTotal float64, examType ExamType, reason string) EvaluationData {
	if requestedTotal < 0 {
		requestedTotal = 0
	}

	question := Question{
		PageNumber:    1,
		Heading:       "Question 1",
		QuestionText:  placeholderText,
		Transcription: placeholderText,
		Evaluation:    "The paper could not be evaluated automatically.",
		Justification: "No marks awarded: automatic evaluation was unavailable.",
		Marks:         FormatMarks(0, requestedTotal),
	}

	return EvaluationData{
		Summary: Summary{
			TotalAwarded:  0,
			TotalPossible: requestedTotal,
			Percentage:    0,
			Grade:         MapGrade(0, examType),
			Feedback:      fmt.Sprintf("Automatic evaluation failed: %s. Please grade this paper manually or retry.", reason),
		},
		Questions: []Question{question},
	}
}
