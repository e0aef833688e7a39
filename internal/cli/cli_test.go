package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"estudo-ai/internal/content"
)

func TestPrintVerse(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printVerse(cmd, content.RecoveryVerse{Reference: "Lamentacoes 3:22-23", Text: "As misericordias do Senhor", Reflection: "Recomece hoje."})

	out := buf.String()
	if !strings.Contains(out, `"As misericordias do Senhor"`) || !strings.Contains(out, "Lamentacoes 3:22-23") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.HasSuffix(out, "Recomece hoje.\n") {
		t.Errorf("reflection missing: %q", out)
	}
}

func TestPrintJSONKeepsAccents(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]string{"title": "Licao <1> & fe"}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}
	if !strings.Contains(buf.String(), "Licao <1> & fe") {
		t.Errorf("expected unescaped output, got %q", buf.String())
	}
}

func TestGenerateRejectsInvalidWeek(t *testing.T) {
	if err := generateCmd.Flags().Set("week", "60"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = generateCmd.Flags().Set("week", "0") })

	err := runGenerate(generateCmd, []string{"estudo.txt"})
	if err == nil || !strings.Contains(err.Error(), "semana invalida") {
		t.Fatalf("expected invalid week error, got %v", err)
	}
}

func TestGenerateOptionsFromFlags(t *testing.T) {
	provider, keyIndex = "openai", "3"
	t.Cleanup(func() { provider, keyIndex = "", "" })

	opts := generateOptions()
	if opts.Provider != "openai" || opts.KeyIndex != "3" {
		t.Errorf("unexpected options %+v", opts)
	}
}
