package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"estudo-ai/internal/content"
	"estudo-ai/internal/db"
	"estudo-ai/internal/services"
)

var generateCmd = &cobra.Command{
	Use:   "generate <arquivo>",
	Short: "Gera o estudo de uma semana a partir de um arquivo .txt, .md ou .pdf",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().IntP("week", "w", 0, "Numero da semana (padrao: semana ISO atual)")
	generateCmd.Flags().IntP("year", "y", 0, "Ano (padrao: ano atual)")
	generateCmd.Flags().StringP("out", "o", "", "Grava o JSON gerado neste arquivo em vez da saida padrao")
	generateCmd.Flags().Bool("save", false, "Salva o estudo no banco de dados configurado")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	week, _ := cmd.Flags().GetInt("week")
	year, _ := cmd.Flags().GetInt("year")
	out, _ := cmd.Flags().GetString("out")
	save, _ := cmd.Flags().GetBool("save")

	isoYear, isoWeek := time.Now().ISOWeek()
	if week == 0 {
		week = isoWeek
	}
	if year == 0 {
		year = isoYear
	}
	if week < 1 || week > 53 {
		return fmt.Errorf("semana invalida: %d", week)
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()
	if !e.generator.IsAIConfigured() {
		return services.ErrAIUnavailable
	}

	ctx := cmd.Context()
	path := args[0]
	var result *content.WeekContent
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, pages, err := services.NewPDFService().ExtractText(path)
		if err != nil {
			return err
		}
		e.log.Info("pdf text extracted", "file", path, "pages", pages)
		result, err = e.generator.GenerateStudyContentFromPDF(ctx, text, week, year, generateOptions())
		if err != nil {
			return err
		}
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		result, err = e.generator.GenerateStudyContentFromText(ctx, string(raw), week, year, generateOptions())
		if err != nil {
			return err
		}
	}

	if save {
		conn, err := db.Open(e.cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()
		study, err := services.NewStudyService(conn).Save(ctx, week, year, e.generator.ProviderFor(generateOptions()), *result, sql.NullInt64{})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Estudo %d salvo (semana %d de %d)\n", study.ID, week, year)
	}

	if out == "" {
		return printJSON(cmd.OutOrStdout(), result)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := printJSON(f, result); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d licoes gravadas em %s\n", len(result.Lessons), out)
	return nil
}
