package content

import "strings"

// NormalizePracticeQuestions normalizes, shuffles and filters model-produced practice
// questions. Questions whose text matches one in existing, or an earlier one in the
// batch, are dropped.
func (n *Normalizer) NormalizePracticeQuestions(items []any, existing []string) []PracticeQuestion {
	seen := make(map[string]bool, len(existing)+len(items))
	for _, q := range existing {
		seen[questionKey(q)] = true
	}

	out := make([]PracticeQuestion, 0, len(items))
	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mc := MultipleChoiceContent{
			Question: str(raw, "question", "text"),
			Options:  strList(raw, "options", "alternatives"),
		}
		mc.CorrectIndex = resolveCorrectIndex(raw, mc.Options)
		if mc.Question == "" {
			continue
		}
		n.RandomizeMultipleChoiceAnswer(&mc)
		if reason := multipleChoiceProblem(mc.Options, mc.CorrectIndex); reason != "" {
			n.log.Warn("discarding practice question", "reason", reason)
			continue
		}
		key := questionKey(mc.Question)
		if seen[key] {
			n.log.Debug("discarding repeated practice question", "question", mc.Question)
			continue
		}
		seen[key] = true
		out = append(out, PracticeQuestion{
			Question:     mc.Question,
			Options:      mc.Options,
			CorrectIndex: mc.CorrectIndex,
			Explanation:  orDefault(str(raw, "explanation", "explanationCorrect"), defaultExplanationCorrect),
		})
	}
	return out
}

func questionKey(q string) string {
	return strings.ToLower(collapseWhitespace.ReplaceAllString(strings.TrimSpace(q), " "))
}
