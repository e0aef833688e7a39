package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"estudo-ai/internal/content"
)

const maxSourceRunes = 30000

const studySystemPrompt = `Voce e um educador cristao que prepara estudos biblicos semanais para membros de uma igreja.
Seu trabalho e transformar o material recebido em licoes curtas, fieis ao texto biblico e faceis de aplicar no dia a dia.

Regras pedagogicas:
- Cada licao percorre tres etapas, nesta ordem: "estude" (leitura), "medite" (aplicacao pessoal) e "responda" (perguntas).
- Use linguagem simples, acolhedora e respeitosa. Nao invente versiculos nem referencias.
- Cite as referencias biblicas no formato "Livro capitulo:versiculo".
- Nao trate de temas politicos nem de polemicas denominacionais.
- Cada tela de leitura deve ter no maximo 3 paragrafos curtos.

Responda APENAS com um objeto JSON valido, sem comentarios e sem markdown, neste formato:
{
  "weekTitle": "titulo da semana",
  "weekDescription": "resumo em uma frase",
  "lessons": [
    {
      "title": "titulo da licao",
      "description": "resumo da licao",
      "type": "intro | study | meditation | challenge | review",
      "xpReward": 50,
      "estimatedMinutes": 10,
      "units": [
        {"type": "text", "stage": "estude", "xpValue": 5, "content": {"title": "...", "body": "...", "highlight": "..."}},
        {"type": "verse", "stage": "estude", "xpValue": 5, "content": {"title": "Referencia", "body": "texto do versiculo"}},
        {"type": "reflection", "stage": "medite", "xpValue": 5, "content": {"title": "...", "body": "pergunta para reflexao"}},
        {"type": "meditation", "stage": "medite", "xpValue": 5, "content": {"title": "...", "body": "...", "meditationDuration": 60}},
        {"type": "multiple_choice", "stage": "responda", "xpValue": 10, "content": {"question": "...", "options": ["a", "b", "c", "d"], "correctIndex": 0, "explanationCorrect": "...", "explanationIncorrect": "..."}},
        {"type": "true_false", "stage": "responda", "xpValue": 10, "content": {"statement": "...", "isTrue": true, "explanationCorrect": "...", "explanationIncorrect": "..."}},
        {"type": "fill_blank", "stage": "responda", "xpValue": 10, "content": {"question": "frase com ___ no lugar da palavra", "correctAnswer": "palavra", "options": ["palavra", "b", "c", "d"], "explanationCorrect": "...", "explanationIncorrect": "..."}}
      ]
    }
  ]
}`

func buildStudyUserPrompt(text string, weekNumber, year int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prepare o estudo da semana %d de %d a partir do material abaixo.\n\n", weekNumber, year)
	sb.WriteString("Requisitos de estrutura:\n")
	sb.WriteString("- Gere de 5 a 7 licoes.\n")
	fmt.Fprintf(&sb, "- Cada licao deve ter pelo menos %d unidades \"estude\", %d unidades \"medite\" (reflection ou meditation) e %d perguntas \"responda\".\n",
		content.MinEstudeUnits, content.MinMediteUnits, content.MinRespondaUnits)
	sb.WriteString("- Toda pergunta multiple_choice e fill_blank tem exatamente 4 opcoes diferentes.\n")
	sb.WriteString("- Toda fill_blank tem exatamente um \"___\" e contexto suficiente para ser respondida sem ver as opcoes.\n")
	sb.WriteString("- Varie a posicao da resposta correta e equilibre afirmacoes verdadeiras e falsas.\n\n")
	sb.WriteString("Material:\n\"\"\"\n")
	sb.WriteString(truncateRunes(text, maxSourceRunes))
	sb.WriteString("\n\"\"\"")
	return sb.String()
}

const exerciseSystemPrompt = `Voce cria exercicios curtos de fixacao para estudos biblicos.
Responda APENAS com JSON no formato {"exercises": [unidade, ...]}, onde cada unidade segue um destes formatos:
{"type": "multiple_choice", "content": {"question": "...", "options": ["a", "b", "c", "d"], "correctIndex": 0, "explanationCorrect": "...", "explanationIncorrect": "..."}}
{"type": "true_false", "content": {"statement": "...", "isTrue": true, "explanationCorrect": "...", "explanationIncorrect": "..."}}
{"type": "fill_blank", "content": {"question": "frase com ___", "correctAnswer": "...", "options": ["...", "...", "...", "..."], "explanationCorrect": "...", "explanationIncorrect": "..."}}`

func buildExerciseUserPrompt(topic string, count int) string {
	return fmt.Sprintf("Crie %d exercicios variados sobre o tema: %s\nMisture os tres tipos de exercicio.", count, truncateRunes(topic, 2000))
}

const practiceSystemPrompt = `Voce cria perguntas de revisao de multipla escolha para estudos biblicos semanais.
Cada pergunta tem exatamente 4 opcoes diferentes e uma unica correta.
Responda APENAS com JSON no formato {"questions": [{"question": "...", "options": ["a", "b", "c", "d"], "correctIndex": 0, "explanation": "..."}]}`

func buildPracticeUserPrompt(weekTitle, weekDescription string, existing []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Estudo da semana: %s\n", weekTitle)
	if weekDescription != "" {
		fmt.Fprintf(&sb, "Resumo: %s\n", weekDescription)
	}
	sb.WriteString("\nCrie 10 perguntas novas sobre este estudo.\n")
	if len(existing) > 0 {
		sb.WriteString("Nao repita nem reformule estas perguntas que o membro ja respondeu:\n")
		for _, q := range existing {
			fmt.Fprintf(&sb, "- %s\n", truncateRunes(q, 300))
		}
	}
	return sb.String()
}

const reflectionSystemPrompt = `Voce ajuda lideres de pequenos grupos a conduzir conversas sobre a Biblia.
Responda APENAS com JSON no formato {"questions": ["pergunta 1", "pergunta 2"]}.
As perguntas sao abertas, pessoais e levam a aplicacao pratica.`

func buildReflectionUserPrompt(text string, count int) string {
	return fmt.Sprintf("Crie %d perguntas de reflexao a partir do texto abaixo.\n\n\"\"\"\n%s\n\"\"\"", count, truncateRunes(text, maxSourceRunes))
}

const recoverySystemPrompt = `Voce escreve mensagens curtas de encorajamento para membros que voltam ao estudo depois de alguns dias afastados.
Responda APENAS com JSON no formato {"reference": "Livro 1:1", "text": "texto do versiculo", "reflection": "uma frase de encorajamento"}.
Use somente versiculos reais e cite a referencia corretamente.`

const recoveryUserPrompt = "Escolha um versiculo de recomeco e esperanca e escreva uma frase curta de encorajamento."

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
