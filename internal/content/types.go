// Package content holds the lesson tree produced by study generation and the rules that
// normalize and validate it.
package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Stage string

const (
	StageEstude   Stage = "estude"
	StageMedite   Stage = "medite"
	StageResponda Stage = "responda"
)

type UnitType string

const (
	UnitText           UnitType = "text"
	UnitVerse          UnitType = "verse"
	UnitMultipleChoice UnitType = "multiple_choice"
	UnitTrueFalse      UnitType = "true_false"
	UnitFillBlank      UnitType = "fill_blank"
	UnitMeditation     UnitType = "meditation"
	UnitReflection     UnitType = "reflection"
)

// UnitTypes lists every supported unit type.
var UnitTypes = []UnitType{
	UnitText, UnitVerse, UnitMultipleChoice, UnitTrueFalse, UnitFillBlank, UnitMeditation, UnitReflection,
}

// ParseUnitType accepts the canonical names plus a few spellings models tend to emit.
func ParseUnitType(raw string) (UnitType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "text", "texto", "reading":
		return UnitText, true
	case "verse", "versiculo", "bible_verse":
		return UnitVerse, true
	case "multiple_choice", "multiplechoice", "quiz":
		return UnitMultipleChoice, true
	case "true_false", "truefalse", "verdadeiro_falso":
		return UnitTrueFalse, true
	case "fill_blank", "fill_in_the_blank", "fillblank", "complete":
		return UnitFillBlank, true
	case "meditation", "meditacao":
		return UnitMeditation, true
	case "reflection", "reflexao", "application", "aplicacao":
		return UnitReflection, true
	}
	return "", false
}

// DefaultStage is the stage a unit belongs to when the model did not say.
func (t UnitType) DefaultStage() Stage {
	switch t {
	case UnitText, UnitVerse:
		return StageEstude
	case UnitMeditation, UnitReflection:
		return StageMedite
	default:
		return StageResponda
	}
}

// IsQuestion reports whether the unit is answered by the member.
func (t UnitType) IsQuestion() bool {
	return t == UnitMultipleChoice || t == UnitTrueFalse || t == UnitFillBlank
}

func ParseStage(raw string) (Stage, bool) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case StageEstude:
		return StageEstude, true
	case StageMedite:
		return StageMedite, true
	case StageResponda:
		return StageResponda, true
	}
	return "", false
}

type LessonType string

const (
	LessonIntro      LessonType = "intro"
	LessonStudy      LessonType = "study"
	LessonMeditation LessonType = "meditation"
	LessonChallenge  LessonType = "challenge"
	LessonReview     LessonType = "review"
)

func ParseLessonType(raw string) (LessonType, bool) {
	switch LessonType(strings.ToLower(strings.TrimSpace(raw))) {
	case LessonIntro:
		return LessonIntro, true
	case LessonStudy:
		return LessonStudy, true
	case LessonMeditation:
		return LessonMeditation, true
	case LessonChallenge:
		return LessonChallenge, true
	case LessonReview:
		return LessonReview, true
	}
	return "", false
}

// WeekContent is one generated week of study. It is built fresh per generation call and
// handed to the caller, who owns persistence.
type WeekContent struct {
	WeekTitle       string   `json:"weekTitle"`
	WeekDescription string   `json:"weekDescription"`
	Lessons         []Lesson `json:"lessons"`
}

type Lesson struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             LessonType `json:"type"`
	XPReward         int        `json:"xpReward"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	Units            []Unit     `json:"units"`
}

type Unit struct {
	Type    UnitType    `json:"type"`
	Stage   Stage       `json:"stage"`
	Content UnitContent `json:"content"`
	XPValue int         `json:"xpValue"`
}

// UnitContent is implemented only by the content variants in this package. Each variant
// owns its own normalization, so a new unit type cannot be added without one.
type UnitContent interface {
	normalize(n *Normalizer, raw map[string]any)
}

// TextContent backs both text and verse units.
type TextContent struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Highlight string `json:"highlight,omitempty"`
}

type MultipleChoiceContent struct {
	Question             string   `json:"question"`
	Options              []string `json:"options"`
	CorrectIndex         int      `json:"correctIndex"`
	ExplanationCorrect   string   `json:"explanationCorrect"`
	ExplanationIncorrect string   `json:"explanationIncorrect"`
}

type TrueFalseContent struct {
	Statement            string `json:"statement"`
	IsTrue               bool   `json:"isTrue"`
	ExplanationCorrect   string `json:"explanationCorrect"`
	ExplanationIncorrect string `json:"explanationIncorrect"`
}

type FillBlankContent struct {
	Question             string   `json:"question"`
	CorrectAnswer        string   `json:"correctAnswer"`
	Options              []string `json:"options"`
	ExplanationCorrect   string   `json:"explanationCorrect"`
	ExplanationIncorrect string   `json:"explanationIncorrect"`
}

type MeditationContent struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	MeditationDuration int    `json:"meditationDuration"`
}

type ReflectionContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// newContent returns the empty variant for t. t must come from ParseUnitType.
func newContent(t UnitType) UnitContent {
	switch t {
	case UnitText, UnitVerse:
		return &TextContent{}
	case UnitMultipleChoice:
		return &MultipleChoiceContent{}
	case UnitTrueFalse:
		return &TrueFalseContent{}
	case UnitFillBlank:
		return &FillBlankContent{}
	case UnitMeditation:
		return &MeditationContent{}
	case UnitReflection:
		return &ReflectionContent{}
	}
	panic(fmt.Sprintf("content: no content variant for unit type %q", t))
}

// UnmarshalJSON decodes content into the variant selected by type. It is used when reading
// stored weeks back; raw model output goes through the Normalizer instead.
func (u *Unit) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type    UnitType        `json:"type"`
		Stage   Stage           `json:"stage"`
		Content json.RawMessage `json:"content"`
		XPValue int             `json:"xpValue"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t, ok := ParseUnitType(string(wire.Type))
	if !ok {
		return fmt.Errorf("unknown unit type %q", wire.Type)
	}
	c := newContent(t)
	if len(wire.Content) > 0 && string(wire.Content) != "null" {
		if err := json.Unmarshal(wire.Content, c); err != nil {
			return fmt.Errorf("decode %s content: %w", t, err)
		}
	}
	u.Type = t
	u.Stage = wire.Stage
	u.Content = c
	u.XPValue = wire.XPValue
	return nil
}

// PracticeQuestion is a standalone multiple-choice question used for weekly practice.
type PracticeQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// RecoveryVerse is a short encouragement shown to members returning after a break.
type RecoveryVerse struct {
	Reference  string `json:"reference"`
	Text       string `json:"text"`
	Reflection string `json:"reflection"`
}
