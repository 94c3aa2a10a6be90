package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Page names the funnel reports for its own screens.
const (
	PageLanding = "Landing"
	PagePlans   = "Plans"
	PageCart    = "Cart"

	quizPagePrefix = "Quiz Step "
)

// MaxQuizSteps bounds the quiz length, and with it the set of quiz page names.
const MaxQuizSteps = 20

func QuizPageName(step int) string {
	return fmt.Sprintf("%s%d", quizPagePrefix, step)
}

// IsFunnelPage reports whether name is one of the funnel's own pages.
func IsFunnelPage(name string) bool {
	switch name {
	case PageLanding, PagePlans, PageCart:
		return true
	}
	rest, ok := strings.CutPrefix(name, quizPagePrefix)
	if !ok {
		return false
	}
	step, err := strconv.Atoi(rest)
	return err == nil && step >= 1 && step <= MaxQuizSteps && QuizPageName(step) == name
}
