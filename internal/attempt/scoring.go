package attempt

// ScoreAnswer grades one multiple-choice answer. Correctness is exact,
// case-sensitive equality with the stored answer key; a correct answer
// earns the question's full marks, anything else earns zero.
func ScoreAnswer(correctAnswer, selectedAnswer string, marks int) (isCorrect bool, marksObtained int) {
	if selectedAnswer == correctAnswer {
		return true, marks
	}
	return false, 0
}

// Passed applies the inclusive pass boundary: a score exactly equal to
// the passing marks passes.
func Passed(score, passingMarks int) bool {
	return score >= passingMarks
}
