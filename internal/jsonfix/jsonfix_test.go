package jsonfix

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json fence with preamble",
			in:   "Here is the result:\n```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "unlabelled fence",
			in:   "```\n[1,2]\n```\nthanks",
			want: `[1,2]`,
		},
		{
			name: "whole object",
			in:   "  {\"weekTitle\":\"x\"}  ",
			want: `{"weekTitle":"x"}`,
		},
		{
			name: "whole array",
			in:   `["a","b"]`,
			want: `["a","b"]`,
		},
		{
			name: "object with commentary and braces inside strings",
			in:   `Sure! {"title":"use } carefully","n":{"x":1}} hope it helps {not json}`,
			want: `{"title":"use } carefully","n":{"x":1}}`,
		},
		{
			name: "array before object",
			in:   `result: [{"q":"a"},{"q":"b"}] done`,
			want: `[{"q":"a"},{"q":"b"}]`,
		},
		{
			name: "truncated object keeps tail",
			in:   `ok {"a":[1,2`,
			want: `{"a":[1,2`,
		},
		{
			name: "no json at all",
			in:   "  nothing here  ",
			want: "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.in); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepairDanglingCommaAndUnmatchedBracket(t *testing.T) {
	in := `{"a": [1, 2], "b": 3,}]`
	out := Repair(in)

	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("repaired JSON %q does not parse: %v", out, err)
	}
	if v["b"].(float64) != 3 {
		t.Errorf("unexpected value for b: %v", v["b"])
	}
}

func TestRepairClosesTruncatedOutput(t *testing.T) {
	in := `{"lessons":[{"title":"Licao 1","units":[{"type":"text","content":{"body":"Deus e am`
	out := Repair(in)

	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("repaired JSON %q does not parse: %v", out, err)
	}
	lessons := v["lessons"].([]any)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(lessons))
	}
}

func TestRepairStripsControlCharacters(t *testing.T) {
	in := "{\"a\":\"x\x01y\x0b\"}"
	out := Repair(in)
	if strings.ContainsAny(out, "\x01\x0b") {
		t.Fatalf("control characters survived: %q", out)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("repaired JSON does not parse: %v", err)
	}
	if v["a"] != "xy" {
		t.Errorf("expected xy, got %q", v["a"])
	}
}

func TestSafeParse(t *testing.T) {
	var ok map[string]int
	if err := SafeParse(`{"a":1,}`, &ok); err != nil {
		t.Fatalf("expected repaired parse to succeed: %v", err)
	}
	if ok["a"] != 1 {
		t.Errorf("expected a=1, got %v", ok)
	}

	var bad map[string]int
	raw := `{"a": nope}`
	var origErr error
	var probe map[string]int
	origErr = json.Unmarshal([]byte(raw), &probe)

	err := SafeParse(raw, &bad)
	if err == nil {
		t.Fatal("expected error for unrepairable input")
	}
	if err.Error() != origErr.Error() {
		t.Errorf("expected original error %q, got %q", origErr, err)
	}
}

type upperRepairer struct{ calls int }

func (u *upperRepairer) Repair(s string) string {
	u.calls++
	return `{"a":2}`
}

func TestSafeParseWithCustomRepairer(t *testing.T) {
	r := &upperRepairer{}
	var v map[string]int
	if err := SafeParseWith(r, `garbage`, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.calls != 1 || v["a"] != 2 {
		t.Errorf("expected custom repairer to be used once, calls=%d v=%v", r.calls, v)
	}

	r2 := &upperRepairer{}
	if err := SafeParseWith(r2, `{"a":1}`, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r2.calls != 0 {
		t.Errorf("repairer should not run for valid input")
	}
}
