package content

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"estudo-ai/internal/logger"
)

const (
	defaultBody                 = "Conteudo nao disponivel"
	defaultExplanationCorrect   = "Correto!"
	defaultExplanationIncorrect = "Revise o conteudo e tente novamente."
	defaultMeditationSeconds    = 60
	defaultLessonXP             = 50
	defaultLessonMinutes        = 10
)

// Normalizer turns loosely shaped model output into the strict content tree. It owns its
// random source and is not safe for concurrent use; create one per generation call.
type Normalizer struct {
	rng *rand.Rand
	log *logger.Logger
}

// NewNormalizer returns a Normalizer seeded from the clock.
func NewNormalizer(log *logger.Logger) *Normalizer {
	return NewSeededNormalizer(time.Now().UnixNano(), log)
}

// NewSeededNormalizer returns a Normalizer whose shuffles are reproducible.
func NewSeededNormalizer(seed int64, log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Normalizer{rng: rand.New(rand.NewSource(seed)), log: log}
}

// NormalizeWeek builds a WeekContent from a parsed model response. It never fails; missing
// pieces degrade to placeholders.
func (n *Normalizer) NormalizeWeek(raw map[string]any, weekNumber int) WeekContent {
	week := WeekContent{
		WeekTitle:       str(raw, "weekTitle", "title"),
		WeekDescription: str(raw, "weekDescription", "description"),
	}
	if week.WeekTitle == "" {
		week.WeekTitle = fmt.Sprintf("Semana %d", weekNumber)
	}
	for i, item := range list(raw, "lessons") {
		m, ok := item.(map[string]any)
		if !ok {
			n.log.Warn("skipping lesson that is not an object", "index", i)
			continue
		}
		week.Lessons = append(week.Lessons, n.NormalizeLesson(m, i))
	}
	return week
}

func (n *Normalizer) NormalizeLesson(raw map[string]any, index int) Lesson {
	lesson := Lesson{
		Title:       str(raw, "title"),
		Description: str(raw, "description"),
		Type:        LessonStudy,
	}
	if lesson.Title == "" {
		lesson.Title = fmt.Sprintf("Licao %d", index+1)
	}
	if t, ok := ParseLessonType(str(raw, "type")); ok {
		lesson.Type = t
	}
	lesson.XPReward = positiveInt(raw, defaultLessonXP, "xpReward", "xp")
	lesson.EstimatedMinutes = positiveInt(raw, defaultLessonMinutes, "estimatedMinutes", "minutes")
	lesson.Units = n.NormalizeUnits(list(raw, "units"))
	return lesson
}

// NormalizeUnits normalizes every object in items, skipping anything else.
func (n *Normalizer) NormalizeUnits(items []any) []Unit {
	units := make([]Unit, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			n.log.Warn("skipping unit that is not an object", "index", i)
			continue
		}
		units = append(units, n.NormalizeUnit(m))
	}
	return units
}

func (n *Normalizer) NormalizeUnit(raw map[string]any) Unit {
	rawType := str(raw, "type")
	t, ok := ParseUnitType(rawType)
	if !ok {
		n.log.Warn("unknown unit type, treating as text", "type", rawType)
		t = UnitText
	}

	stage, ok := ParseStage(str(raw, "stage"))
	if !ok {
		stage = t.DefaultStage()
	}

	fields, _ := raw["content"].(map[string]any)
	if fields == nil {
		// Some responses put the content fields directly on the unit.
		fields = raw
	}
	c := newContent(t)
	c.normalize(n, fields)

	return Unit{
		Type:    t,
		Stage:   stage,
		Content: c,
		XPValue: positiveInt(raw, defaultXP(t), "xpValue", "xp"),
	}
}

func defaultXP(t UnitType) int {
	if t.IsQuestion() {
		return 10
	}
	return 5
}

func (c *TextContent) normalize(_ *Normalizer, raw map[string]any) {
	c.Title = orDefault(str(raw, "title", "reference"), "Estudo")
	c.Body = orDefault(str(raw, "body", "verseText", "text", "content"), defaultBody)
	c.Highlight = str(raw, "highlight", "reference")
	if c.Highlight == c.Title {
		c.Highlight = str(raw, "highlight")
	}
}

func (c *MultipleChoiceContent) normalize(n *Normalizer, raw map[string]any) {
	c.Question = orDefault(str(raw, "question", "text", "statement"), "Pergunta")
	c.Options = strList(raw, "options", "alternatives")
	c.CorrectIndex = resolveCorrectIndex(raw, c.Options)
	c.ExplanationCorrect = orDefault(str(raw, "explanationCorrect", "explanation"), defaultExplanationCorrect)
	c.ExplanationIncorrect = orDefault(str(raw, "explanationIncorrect"), defaultExplanationIncorrect)
	n.RandomizeMultipleChoiceAnswer(c)
}

func (c *TrueFalseContent) normalize(_ *Normalizer, raw map[string]any) {
	c.Statement = orDefault(str(raw, "statement", "question", "text"), "Afirmacao")
	if b, ok := raw["isTrue"].(bool); ok {
		c.IsTrue = b
	} else if answer, ok := raw["correctAnswer"]; ok {
		c.IsTrue = answer == true || answer == "true"
	} else {
		// TODO: items with no usable answer default to true; flag them for regeneration instead.
		c.IsTrue = true
	}
	c.ExplanationCorrect = orDefault(str(raw, "explanationCorrect", "explanation"), defaultExplanationCorrect)
	c.ExplanationIncorrect = orDefault(str(raw, "explanationIncorrect"), defaultExplanationIncorrect)
}

func (c *MeditationContent) normalize(_ *Normalizer, raw map[string]any) {
	c.Title = orDefault(str(raw, "title"), "Momento de meditacao")
	c.Body = orDefault(str(raw, "body", "text", "content"), "Reserve um momento em silencio para refletir sobre o que voce estudou.")
	c.MeditationDuration = positiveInt(raw, defaultMeditationSeconds, "meditationDuration", "duration")
}

func (c *ReflectionContent) normalize(_ *Normalizer, raw map[string]any) {
	c.Title = orDefault(str(raw, "title"), "Reflexao")
	c.Body = orDefault(str(raw, "body", "question", "text", "content"), "Como voce pode aplicar o que aprendeu hoje?")
}

// resolveCorrectIndex reads correctIndex, or derives it from correctAnswer given as a
// letter, a number or the option text. Numbers within 1..len(options) are read as 1-based.
func resolveCorrectIndex(raw map[string]any, options []string) int {
	if idx, ok := intField(raw, "correctIndex"); ok {
		return idx
	}
	switch answer := raw["correctAnswer"].(type) {
	case float64:
		return fromNumber(int(answer), len(options))
	case string:
		a := strings.TrimSpace(answer)
		if len(a) == 1 {
			letter := strings.ToLower(a)[0]
			if letter >= 'a' && letter <= 'd' {
				return int(letter - 'a')
			}
		}
		if num, err := strconv.Atoi(a); err == nil {
			return fromNumber(num, len(options))
		}
		for i, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), a) {
				return i
			}
		}
	}
	return 0
}

func fromNumber(num, count int) int {
	if num >= 1 && num <= count {
		return num - 1
	}
	return num
}

// RandomizeMultipleChoiceAnswer clamps CorrectIndex into range and shuffles the options,
// moving CorrectIndex with the correct option.
func (n *Normalizer) RandomizeMultipleChoiceAnswer(c *MultipleChoiceContent) {
	if len(c.Options) == 0 {
		c.CorrectIndex = 0
		return
	}
	c.CorrectIndex = clamp(c.CorrectIndex, 0, len(c.Options)-1)
	c.Options, c.CorrectIndex = n.shuffleTracking(c.Options, c.CorrectIndex)
}

// shuffleTracking returns a Fisher-Yates permutation of options and the new position of
// the element that was at index.
func (n *Normalizer) shuffleTracking(options []string, index int) ([]string, int) {
	order := make([]int, len(options))
	for i := range order {
		order[i] = i
	}
	n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	out := make([]string, len(options))
	newIndex := 0
	for i, from := range order {
		out[i] = options[from]
		if from == index {
			newIndex = i
		}
	}
	return out, newIndex
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// str returns the first non-empty string found under keys.
func str(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func intField(raw map[string]any, key string) (int, bool) {
	switch v := raw[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if num, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return num, true
		}
	}
	return 0, false
}

func positiveInt(raw map[string]any, def int, keys ...string) int {
	for _, k := range keys {
		if v, ok := intField(raw, k); ok && v >= 1 {
			return v
		}
	}
	return def
}

func list(raw map[string]any, key string) []any {
	items, _ := raw[key].([]any)
	return items
}

// strList returns the non-empty strings under the first key holding a list.
func strList(raw map[string]any, keys ...string) []string {
	for _, k := range keys {
		items, ok := raw[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		return out
	}
	return nil
}
