package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Blank is the placeholder a fill_blank question must contain exactly once.
const Blank = "___"

const minStemRunes = 15

var (
	underscoreRun      = regexp.MustCompile(`_{2,}`)
	instructionPrefix  = regexp.MustCompile(`(?i)^\s*(complete a frase|preencha a lacuna|complete|preencha)\s*:\s*`)
	collapseWhitespace = regexp.MustCompile(`\s+`)
)

func (c *FillBlankContent) normalize(n *Normalizer, raw map[string]any) {
	c.CorrectAnswer = str(raw, "correctAnswer", "answer")
	c.Options = strList(raw, "options", "alternatives")
	c.Question = normalizeStem(str(raw, "question", "text", "sentence"), c.CorrectAnswer, str(raw, "hint"))
	c.ExplanationCorrect = orDefault(str(raw, "explanationCorrect", "explanation"), defaultExplanationCorrect)
	c.ExplanationIncorrect = orDefault(str(raw, "explanationIncorrect"), defaultExplanationIncorrect)
	n.ShuffleFillBlank(c)
}

// ShuffleFillBlank shuffles the options in place. The correct answer is matched by text,
// so no index needs tracking.
func (n *Normalizer) ShuffleFillBlank(c *FillBlankContent) {
	n.rng.Shuffle(len(c.Options), func(i, j int) { c.Options[i], c.Options[j] = c.Options[j], c.Options[i] })
}

// normalizeStem strips instruction prefixes and leaves exactly one blank in the question.
// Stems too short to give any context are replaced by a hint-based question.
func normalizeStem(q, answer, hint string) string {
	for {
		stripped := instructionPrefix.ReplaceAllString(q, "")
		if stripped == q {
			break
		}
		q = stripped
	}
	q = strings.TrimSpace(underscoreRun.ReplaceAllString(q, Blank))

	stem := blankContext(q)
	if utf8.RuneCountInString(stem) < minStemRunes || !strings.Contains(stem, " ") {
		return fallbackStem(hint)
	}

	switch count := strings.Count(q, Blank); {
	case count == 0:
		q = insertBlank(q, answer)
	case count > 1:
		first := strings.Index(q, Blank) + len(Blank)
		q = q[:first] + strings.ReplaceAll(q[first:], Blank, "...")
	}
	return q
}

// insertBlank replaces the first occurrence of answer with the blank, or appends one.
func insertBlank(q, answer string) string {
	if answer != "" {
		lowerQ, lowerA := strings.ToLower(q), strings.ToLower(answer)
		if i := strings.Index(lowerQ, lowerA); i >= 0 && len(lowerQ) == len(q) && i+len(answer) <= len(q) {
			return q[:i] + Blank + q[i+len(answer):]
		}
	}
	return strings.TrimRight(q, " .") + " " + Blank + "."
}

func fallbackStem(hint string) string {
	if hint != "" {
		return fmt.Sprintf("Pensando no estudo desta semana (%s), a palavra que completa a ideia e %s.", hint, Blank)
	}
	return "Pensando no estudo desta semana, a palavra que completa corretamente a ideia e " + Blank + "."
}

// sameAnswer compares answers ignoring case and runs of whitespace.
func sameAnswer(a, b string) bool {
	return strings.EqualFold(
		collapseWhitespace.ReplaceAllString(strings.TrimSpace(a), " "),
		collapseWhitespace.ReplaceAllString(strings.TrimSpace(b), " "),
	)
}

func blankContext(q string) string {
	return strings.TrimSpace(strings.ReplaceAll(q, Blank, ""))
}
