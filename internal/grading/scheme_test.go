package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExamType(t *testing.T) {
	require.Equal(t, ExamTypeIELTS, ParseExamType("IELTS"))
	require.Equal(t, ExamTypeOLevel, ParseExamType("O-Level"))
	require.Equal(t, ExamTypeOLevel, ParseExamType("o level"))
	require.Equal(t, ExamTypeOLevel, ParseExamType("OLEVEL"))
	require.Equal(t, ExamTypeALevel, ParseExamType("a_level"))
	require.Equal(t, ExamTypeStandard, ParseExamType("Standard"))
	require.Equal(t, ExamTypeStandard, ParseExamType(""))
	require.Equal(t, ExamTypeStandard, ParseExamType("something else"))
}

func TestInstructionBlockPerScheme(t *testing.T) {
	require.Contains(t, InstructionBlock(ExamTypeIELTS), "9-band")
	require.Contains(t, InstructionBlock(ExamTypeOLevel), "A*-G")
	require.Contains(t, InstructionBlock(ExamTypeALevel), "A*-E")
	require.Contains(t, InstructionBlock(ExamTypeStandard), "A+")
}

func TestBuildGradingPromptEmbedsMetadata(t *testing.T) {
	prompt := BuildGradingPrompt(PromptInput{
		StudentName:     "Amina Yusuf",
		StudentRef:      "S-1044",
		Subject:         "Physics",
		ExamType:        ExamTypeALevel,
		TotalMarks:      75,
		GradingCriteria: "Penalize missing units.",
		HasMarkScheme:   true,
	})

	require.Contains(t, prompt, "Amina Yusuf")
	require.Contains(t, prompt, "S-1044")
	require.Contains(t, prompt, "Physics")
	require.Contains(t, prompt, "TOTAL POSSIBLE MARKS: 75")
	require.Contains(t, prompt, "Penalize missing units.")
	require.Contains(t, prompt, "official mark scheme")
	require.Contains(t, prompt, InstructionBlock(ExamTypeALevel))
	require.Contains(t, prompt, `"marks": "<awarded>/<possible>"`)
}

func TestBuildGradingPromptWithoutMarkScheme(t *testing.T) {
	prompt := BuildGradingPrompt(PromptInput{ExamType: ExamTypeStandard})

	require.Contains(t, prompt, "No mark scheme is attached")
	require.NotContains(t, prompt, "official mark scheme")
	require.Contains(t, prompt, "STUDENT: Unknown")
	require.False(t, strings.Contains(prompt, "TOTAL POSSIBLE MARKS"), "zero totals are omitted")
}
