package grading

import "fmt"

type gradeBand struct {
	min   float64
	grade string
	color string
}

// Band tables are ordered highest threshold first; MapGrade walks each table
// top-down and returns the first band whose minimum the percentage meets.
var (
	ieltsBands = []gradeBand{
		{95, "9.0", "emerald"},
		{90, "8.5", "emerald"},
		{85, "8.0", "green"},
		{80, "7.5", "green"},
		{75, "7.0", "green"},
		{70, "6.5", "lime"},
		{65, "6.0", "lime"},
		{60, "5.5", "yellow"},
		{55, "5.0", "yellow"},
		{50, "4.5", "amber"},
		{45, "4.0", "amber"},
		{40, "3.5", "orange"},
		{35, "3.0", "orange"},
		{30, "2.5", "orange"},
		{25, "2.0", "red"},
		{20, "1.5", "red"},
		{15, "1.0", "red"},
		{10, "0.5", "red"},
		{0, "0.0", "red"},
	}

	oLevelBands = []gradeBand{
		{90, "A*", "emerald"},
		{80, "A", "green"},
		{70, "B", "lime"},
		{60, "C", "yellow"},
		{50, "D", "amber"},
		{40, "E", "orange"},
		{30, "F", "orange"},
		{20, "G", "red"},
		{0, "U", "red"},
	}

	aLevelBands = []gradeBand{
		{90, "A*", "emerald"},
		{80, "A", "green"},
		{70, "B", "lime"},
		{60, "C", "yellow"},
		{50, "D", "amber"},
		{40, "E", "orange"},
		{0, "U", "red"},
	}

	standardBands = []gradeBand{
		{90, "A+", "emerald"},
		{85, "A", "emerald"},
		{80, "A-", "green"},
		{75, "B+", "green"},
		{70, "B", "lime"},
		{65, "B-", "lime"},
		{60, "C+", "yellow"},
		{55, "C", "yellow"},
		{50, "C-", "amber"},
		{45, "D+", "amber"},
		{40, "D", "orange"},
		{35, "D-", "orange"},
		{0, "F", "red"},
	}
)

// MapGrade converts a percentage into the band grade for the given exam
// scheme. Total over [0,100] and any exam type; out-of-range percentages are
// clamped first.
func MapGrade(percentage float64, examType ExamType) Grade {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	var bands []gradeBand
	switch examType {
	case ExamTypeIELTS:
		bands = ieltsBands
	case ExamTypeOLevel:
		bands = oLevelBands
	case ExamTypeALevel:
		bands = aLevelBands
	default:
		bands = standardBands
	}

	for _, band := range bands {
		if percentage >= band.min {
			return Grade{Grade: band.grade, Color: band.color}
		}
	}

	// Unreachable: every table bottoms out at a zero threshold.
	last := bands[len(bands)-1]
	return Grade{Grade: last.grade, Color: last.color}
}

// MapGradeFor parses the exam type string before mapping; convenience for
// callers holding the raw caller-supplied value.
func MapGradeFor(percentage float64, examType string) Grade {
	return MapGrade(percentage, ParseExamType(examType))
}

func (g Grade) String() string {
	return fmt.Sprintf("%s (%s)", g.Grade, g.Color)
}
