package content

// Stock units used to pad lessons the model underproduced. They are deliberately generic
// so they fit any week.

var stockReflections = []ReflectionContent{
	{
		Title: "Aplicando no dia a dia",
		Body:  "Pense em uma situacao desta semana em que voce pode colocar em pratica o que estudou. O que voce fara de diferente?",
	},
	{
		Title: "Olhando para dentro",
		Body:  "Qual parte deste estudo mais falou ao seu coracao? Escreva em poucas palavras o motivo.",
	},
	{
		Title: "Compartilhando",
		Body:  "Com quem voce pode compartilhar o que aprendeu hoje? Pense em uma forma simples de fazer isso.",
	},
}

type stockQuestion struct {
	unitType UnitType
	tf       TrueFalseContent
	mc       MultipleChoiceContent
}

var stockQuestions = []stockQuestion{
	{
		unitType: UnitTrueFalse,
		tf: TrueFalseContent{
			Statement:            "A oracao e uma forma de conversar com Deus em qualquer momento.",
			IsTrue:               true,
			ExplanationCorrect:   "Isso mesmo! A oracao nos aproxima de Deus todos os dias.",
			ExplanationIncorrect: defaultExplanationIncorrect,
		},
	},
	{
		unitType: UnitMultipleChoice,
		mc: MultipleChoiceContent{
			Question:             "Qual atitude mostra que voce aprendeu com o estudo desta semana?",
			Options:              []string{"Colocar em pratica o que aprendi", "Esquecer o que foi estudado", "Esperar que outra pessoa aja", "Deixar para depois"},
			CorrectIndex:         0,
			ExplanationCorrect:   "Correto! Aprender e viver o que estudamos.",
			ExplanationIncorrect: defaultExplanationIncorrect,
		},
	},
	{
		unitType: UnitTrueFalse,
		tf: TrueFalseContent{
			Statement:            "A leitura da Biblia deve ser feita apenas aos sabados.",
			IsTrue:               false,
			ExplanationCorrect:   "Correto! A Palavra pode ser lida e meditada todos os dias.",
			ExplanationIncorrect: "A leitura da Biblia faz bem todos os dias da semana.",
		},
	},
	{
		unitType: UnitMultipleChoice,
		mc: MultipleChoiceContent{
			Question:             "O que mais ajuda a guardar no coracao o que foi estudado?",
			Options:              []string{"Revisar e meditar no conteudo", "Ler apenas o titulo", "Pular as perguntas", "Evitar pensar no assunto"},
			CorrectIndex:         0,
			ExplanationCorrect:   "Isso! Revisar e meditar fixa o aprendizado.",
			ExplanationIncorrect: defaultExplanationIncorrect,
		},
	},
	{
		unitType: UnitTrueFalse,
		tf: TrueFalseContent{
			Statement:            "Compartilhar o que aprendemos pode fortalecer a fe de outras pessoas.",
			IsTrue:               true,
			ExplanationCorrect:   "Correto! O que aprendemos tambem edifica quem esta ao nosso lado.",
			ExplanationIncorrect: defaultExplanationIncorrect,
		},
	},
}

func (n *Normalizer) stockReflectionUnit(i int) Unit {
	r := stockReflections[i%len(stockReflections)]
	return Unit{Type: UnitReflection, Stage: StageMedite, Content: &r, XPValue: defaultXP(UnitReflection)}
}

// stockQuestionUnit returns a fresh copy of the i-th stock question, cycling through the
// bank. Multiple-choice options are reshuffled on every copy.
func (n *Normalizer) stockQuestionUnit(i int) Unit {
	q := stockQuestions[i%len(stockQuestions)]
	u := Unit{Type: q.unitType, Stage: StageResponda, XPValue: defaultXP(q.unitType)}
	switch q.unitType {
	case UnitMultipleChoice:
		mc := q.mc
		mc.Options = append([]string(nil), q.mc.Options...)
		n.RandomizeMultipleChoiceAnswer(&mc)
		u.Content = &mc
	default:
		tf := q.tf
		u.Content = &tf
	}
	return u
}
