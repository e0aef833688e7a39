package services

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"estudo-ai/internal/content"
	"estudo-ai/internal/llm"
)

const recoveryTimeout = 20 * time.Second

var fallbackVerses = []content.RecoveryVerse{
	{
		Reference:  "Lamentacoes 3:22-23",
		Text:       "As misericordias do Senhor sao a causa de nao sermos consumidos; renovam-se cada manha.",
		Reflection: "Todo dia e uma nova chance de voltar. Que bom ter voce de volta!",
	},
	{
		Reference:  "Isaias 40:31",
		Text:       "Mas os que esperam no Senhor renovarao as suas forcas.",
		Reflection: "Recomecar tambem e um ato de fe. Siga em frente no seu ritmo.",
	},
	{
		Reference:  "Filipenses 3:13-14",
		Text:       "Esquecendo-me das coisas que atras ficam, e avancando para as que estao diante de mim, prossigo para o alvo.",
		Reflection: "O que importa e o proximo passo. Vamos continuar juntos.",
	},
	{
		Reference:  "Mateus 11:28",
		Text:       "Vinde a mim, todos os que estais cansados e oprimidos, e eu vos aliviarei.",
		Reflection: "Voce nao precisa chegar perfeito, so precisa chegar.",
	},
	{
		Reference:  "Salmos 51:10",
		Text:       "Cria em mim, o Deus, um coracao puro, e renova em mim um espirito reto.",
		Reflection: "Deus renova quem se aproxima dele. Bom recomeco!",
	},
}

// GenerateRecoveryVerse is best effort: it returns a static verse whenever AI is not
// configured, the quota cooldown is active or the call fails. The second result reports
// whether the verse came from the model.
func (g *Generator) GenerateRecoveryVerse(ctx context.Context) (content.RecoveryVerse, bool) {
	if !g.IsAIConfigured() {
		return g.fallbackVerse(), false
	}
	if g.cooldown.Active(ctx) {
		g.log.Debug("quota cooldown active, using fallback verse")
		return g.fallbackVerse(), false
	}

	ctx, cancel := context.WithTimeout(ctx, recoveryTimeout)
	defer cancel()

	var verse content.RecoveryVerse
	req := llm.Request{System: recoverySystemPrompt, User: recoveryUserPrompt, Temperature: 0.9}
	if err := g.generateJSON(ctx, req, GenerateOptions{}, &verse); err != nil {
		g.log.Warn("recovery verse generation failed, using fallback", "error", err)
		return g.fallbackVerse(), false
	}
	verse.Reference = strings.TrimSpace(verse.Reference)
	verse.Text = strings.TrimSpace(verse.Text)
	if verse.Reference == "" || verse.Text == "" {
		return g.fallbackVerse(), false
	}
	if strings.TrimSpace(verse.Reflection) == "" {
		verse.Reflection = fallbackVerses[0].Reflection
	}
	return verse, true
}

func (g *Generator) fallbackVerse() content.RecoveryVerse {
	return fallbackVerses[rand.Intn(len(fallbackVerses))]
}
