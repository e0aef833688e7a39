package content

import (
	"strings"
	"unicode/utf8"
)

// Per-lesson minimums enforced after cleaning.
const (
	MinEstudeUnits   = 6
	MinMediteUnits   = 3
	MinRespondaUnits = 5
	minBlankContext  = 20
)

// ValidateAndCleanContent drops malformed question units from every lesson and pads
// lessons that fall short of the medite and responda minimums. Estude units are never
// removed or added; a shortfall there is only logged.
func (n *Normalizer) ValidateAndCleanContent(week WeekContent) WeekContent {
	for i := range week.Lessons {
		week.Lessons[i] = n.validateLesson(week.Lessons[i])
	}
	return week
}

func (n *Normalizer) validateLesson(lesson Lesson) Lesson {
	lesson.Units = n.CleanUnits(lesson.Units)

	var estude, medite, responda int
	for _, u := range lesson.Units {
		switch {
		case u.Stage == StageEstude:
			estude++
		case u.Stage == StageMedite && (u.Type == UnitMeditation || u.Type == UnitReflection):
			medite++
		case u.Stage == StageResponda && u.Type.IsQuestion():
			responda++
		}
	}

	if estude < MinEstudeUnits {
		n.log.Warn("lesson has fewer study units than expected", "lesson", lesson.Title, "count", estude)
	}

	if medite < MinMediteUnits {
		missing := MinMediteUnits - medite
		n.log.Warn("padding lesson with stock reflections", "lesson", lesson.Title, "count", medite, "added", missing)
		pad := make([]Unit, 0, missing)
		for i := 0; i < missing; i++ {
			pad = append(pad, n.stockReflectionUnit(i))
		}
		lesson.Units = insertBeforeStage(lesson.Units, StageResponda, pad)
	}

	if responda < MinRespondaUnits {
		missing := MinRespondaUnits - responda
		n.log.Warn("padding lesson with stock questions", "lesson", lesson.Title, "count", responda, "added", missing)
		for i := 0; i < missing; i++ {
			lesson.Units = append(lesson.Units, n.stockQuestionUnit(i))
		}
	}
	return lesson
}

// CleanUnits returns units without the multiple-choice and fill-blank items that cannot be
// repaired. Units in the estude stage are always kept.
func (n *Normalizer) CleanUnits(units []Unit) []Unit {
	kept := make([]Unit, 0, len(units))
	for _, u := range units {
		if u.Stage == StageEstude {
			kept = append(kept, u)
			continue
		}
		if reason := invalidReason(u); reason != "" {
			n.log.Warn("discarding malformed unit", "type", u.Type, "reason", reason)
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

func invalidReason(u Unit) string {
	switch c := u.Content.(type) {
	case *MultipleChoiceContent:
		return multipleChoiceProblem(c.Options, c.CorrectIndex)
	case *FillBlankContent:
		if len(c.Options) != 4 || !uniqueOptions(c.Options) {
			return "fill_blank needs 4 unique options"
		}
		found := false
		for _, opt := range c.Options {
			if sameAnswer(opt, c.CorrectAnswer) {
				found = true
				break
			}
		}
		if c.CorrectAnswer == "" || !found {
			return "correct answer missing from options"
		}
		if strings.Count(c.Question, Blank) != 1 {
			return "question must contain exactly one blank"
		}
		if utf8.RuneCountInString(blankContext(c.Question)) < minBlankContext {
			return "question has too little context"
		}
	}
	return ""
}

func multipleChoiceProblem(options []string, correctIndex int) string {
	if len(options) != 4 || !uniqueOptions(options) {
		return "multiple_choice needs 4 unique options"
	}
	if correctIndex < 0 || correctIndex > 3 {
		return "correct index out of range"
	}
	return ""
}

func uniqueOptions(options []string) bool {
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" || seen[key] {
			return false
		}
		seen[key] = true
	}
	return true
}

// insertBeforeStage inserts pad before the first unit of stage, or appends it.
func insertBeforeStage(units []Unit, stage Stage, pad []Unit) []Unit {
	at := len(units)
	for i, u := range units {
		if u.Stage == stage {
			at = i
			break
		}
	}
	out := make([]Unit, 0, len(units)+len(pad))
	out = append(out, units[:at]...)
	out = append(out, pad...)
	return append(out, units[at:]...)
}
