package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"estudo-ai/internal/config"
	"estudo-ai/internal/logger"
	"estudo-ai/internal/services"
)

var (
	provider string
	keyIndex string
	quiet    bool
	rootCmd  *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "estudo-cli",
		Short: "Gera estudos biblicos semanais com IA",
		Long: `estudo-cli gera licoes semanais, exercicios e perguntas de reflexao a partir de um
texto ou PDF usando Gemini ou OpenAI, com a mesma validacao aplicada pelo servidor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Provedor de IA (gemini ou openai)")
	rootCmd.PersistentFlags().StringVarP(&keyIndex, "key", "k", "", "Slot da chave de API (1-5)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Mostra apenas avisos e erros no log")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(exercisesCmd)
	rootCmd.AddCommand(reflectionsCmd)
	rootCmd.AddCommand(verseCmd)
	rootCmd.AddCommand(statusCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Erro:", err)
		return err
	}
	return nil
}

// env holds what every subcommand needs. close must be called when done.
type env struct {
	cfg       config.Config
	log       *logger.Logger
	generator *services.Generator
	close     func()
}

func newEnv() (*env, error) {
	cfg, cfgErr := config.Load()
	mode := cfg.LogMode
	if quiet {
		mode = "production"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfgErr != nil {
		log.Warn("using default models", "error", cfgErr)
	}
	gen, closeGen := services.NewGeneratorFromConfig(cfg, log)
	return &env{
		cfg:       cfg,
		log:       log,
		generator: gen,
		close: func() {
			if err := closeGen(); err != nil {
				log.Warn("close providers", "error", err)
			}
			log.Sync()
		},
	}, nil
}

func generateOptions() services.GenerateOptions {
	return services.GenerateOptions{Provider: provider, KeyIndex: keyIndex}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
