package ai

import "context"

// Document is one scanned page sent to the grading model, either from the
// student's paper or from the mark scheme.
type Document struct {
	Name string
	MIME string
	Data []byte
}

// GradeRequest bundles the instruction prompt with the inline document parts.
type GradeRequest struct {
	Prompt    string
	Documents []Document
}

// Grader describes an AI model capable of reading exam documents and
// returning a graded breakdown as free-form text expected to contain JSON.
type Grader interface {
	Grade(ctx context.Context, request GradeRequest) (string, error)
}
