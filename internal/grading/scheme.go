package grading

import (
	"fmt"
	"strings"
)

// PromptInput carries the metadata needed to assemble a grading prompt.
type PromptInput struct {
	StudentName     string
	StudentRef      string
	Subject         string
	ExamType        ExamType
	TotalMarks      float64
	GradingCriteria string
	HasMarkScheme   bool
}

// InstructionBlock returns the grading instructions for an exam scheme.
func InstructionBlock(examType ExamType) string {
	switch examType {
	case ExamTypeIELTS:
		return ieltsInstructions
	case ExamTypeOLevel:
		return oLevelInstructions
	case ExamTypeALevel:
		return aLevelInstructions
	default:
		return standardInstructions
	}
}

// BuildGradingPrompt assembles the instruction text sent alongside the
// document parts. Pure construction; no I/O.
func BuildGradingPrompt(in PromptInput) string {
	var sb strings.Builder

	sb.WriteString("You are an experienced examiner. Grade the attached scanned exam paper.\n\n")
	sb.WriteString("STUDENT: " + orUnknown(in.StudentName) + "\n")
	if in.StudentRef != "" {
		sb.WriteString("STUDENT ID: " + in.StudentRef + "\n")
	}
	sb.WriteString("SUBJECT: " + orUnknown(in.Subject) + "\n")
	sb.WriteString(fmt.Sprintf("EXAM TYPE: %s\n", in.ExamType))
	if in.TotalMarks > 0 {
		sb.WriteString(fmt.Sprintf("TOTAL POSSIBLE MARKS: %s\n", formatNumber(in.TotalMarks)))
	}
	sb.WriteString("\n")

	if in.HasMarkScheme {
		sb.WriteString("The attached documents include the official mark scheme. Grade strictly against it.\n\n")
	} else {
		sb.WriteString("No mark scheme is attached. Grade from your general knowledge of the subject and standard marking conventions.\n\n")
	}

	sb.WriteString("GRADING SCHEME INSTRUCTIONS:\n")
	sb.WriteString(InstructionBlock(in.ExamType))
	sb.WriteString("\n")

	if criteria := strings.TrimSpace(in.GradingCriteria); criteria != "" {
		sb.WriteString("ADDITIONAL GRADING CRITERIA FROM THE TEACHER:\n")
		sb.WriteString(criteria + "\n\n")
	}

	sb.WriteString("For every question you can identify in the paper:\n")
	sb.WriteString("- transcribe the student's answer,\n")
	sb.WriteString("- evaluate it against the scheme,\n")
	sb.WriteString("- justify the marks awarded,\n")
	sb.WriteString("- report marks as \"<awarded>/<possible>\".\n")
	sb.WriteString("If a question was left blank, say so explicitly in the transcription.\n\n")

	sb.WriteString("Respond ONLY with a JSON object of this exact shape:\n")
	sb.WriteString(responseSchemaDirective)
	sb.WriteString("\n")

	return sb.String()
}

const responseSchemaDirective = `{
  "questions": [
    {
      "pageNumber": <positive integer>,
      "heading": "<short label, e.g. Question 2b>",
      "questionText": "<the question as printed>",
      "transcription": "<the student's answer verbatim>",
      "evaluation": "<assessment of the answer>",
      "justification": "<why these marks were awarded>",
      "marks": "<awarded>/<possible>"
    }
  ],
  "summary": {
    "totalAwarded": <number>,
    "totalPossible": <number>,
    "feedback": "<overall feedback for the student>"
  }
}`

const ieltsInstructions = `Score using the IELTS 9-band scale in half-band steps (9.0, 8.5, ... 0.0).
Assess task achievement, coherence and cohesion, lexical resource, and
grammatical range and accuracy. Award per-question marks proportionally to
the band descriptors; a band 9 performance earns full marks for a question.`

const oLevelInstructions = `Apply Cambridge O-Level marking conventions. Award method marks and accuracy
marks separately where the scheme allows. Final grades follow the A*-G
boundaries (A* from 90%, A from 80%, B from 70%, C from 60%, D from 50%,
E from 40%, F from 30%, G from 20%, U below).`

const aLevelInstructions = `Apply Cambridge International A-Level marking conventions. Credit partial
working and error-carried-forward where the scheme allows. Final grades
follow the A*-E boundaries (A* from 90%, A from 80%, B from 70%, C from 60%,
D from 50%, E from 40%, U below).`

const standardInstructions = `Apply standard percentage-based marking. Award partial credit for partially
correct answers. Letter grades run from A+ (90% and above) down to F.`

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}
