package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"estudo-ai/internal/content"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises <tema>",
	Short: "Gera exercicios de multipla escolha, verdadeiro/falso e lacunas sobre um tema",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExercises,
}

var reflectionsCmd = &cobra.Command{
	Use:   "reflections <arquivo>",
	Short: "Gera perguntas de reflexao a partir de um texto",
	Args:  cobra.ExactArgs(1),
	RunE:  runReflections,
}

var verseCmd = &cobra.Command{
	Use:   "verse",
	Short: "Mostra um versiculo de encorajamento",
	RunE:  runVerse,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Mostra se ha chaves de IA configuradas",
	RunE:  runStatus,
}

func init() {
	exercisesCmd.Flags().IntP("count", "n", 5, "Quantidade de exercicios")
	reflectionsCmd.Flags().IntP("count", "n", 3, "Quantidade de perguntas")
}

func runExercises(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	units, err := e.generator.GenerateExercisesFromTopic(cmd.Context(), strings.Join(args, " "), count, generateOptions())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), units)
}

func runReflections(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	questions, err := e.generator.GenerateReflectionQuestions(cmd.Context(), string(raw), count, generateOptions())
	if err != nil {
		return err
	}
	for i, q := range questions {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
	}
	return nil
}

func runVerse(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	verse, fromAI := e.generator.GenerateRecoveryVerse(cmd.Context())
	printVerse(cmd, verse)
	if !fromAI {
		e.log.Debug("showing fallback verse")
	}
	return nil
}

func printVerse(cmd *cobra.Command, v content.RecoveryVerse) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%q\n  %s\n", v.Text, v.Reference)
	if v.Reflection != "" {
		fmt.Fprintf(w, "\n%s\n", v.Reflection)
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "IA configurada: %v\n", e.generator.IsAIConfigured())
	fmt.Fprintf(w, "Provedor padrao: %s\n", e.generator.ProviderFor(generateOptions()))
	fmt.Fprintf(w, "Modelos Gemini: %s\n", strings.Join(e.cfg.Models.Gemini, ", "))
	fmt.Fprintf(w, "Modelos OpenAI: %s\n", strings.Join(e.cfg.Models.OpenAI, ", "))
	fmt.Fprintf(w, "Cota em espera: %v\n", e.generator.Cooldown().Active(cmd.Context()))
	return nil
}
