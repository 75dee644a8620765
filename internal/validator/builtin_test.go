package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/models"
)

func parse(t *testing.T, rel, content string) *Result {
	t.Helper()
	res, ok := models.ResourceFromRel(rel)
	if !ok {
		t.Fatalf("%s is not a resource", rel)
	}
	out, err := NewBuiltin().Parse(context.Background(), Document{Rel: rel, Resource: res, Content: []byte(content)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return out
}

func TestParseFunctionReferences(t *testing.T) {
	r := parse(t, "data/ns/function/main.mcfunction",
		"say hi\nfunction ns:helper\nexecute as @a run function #ns:ticks\nschedule function other 1t\n")

	if len(r.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", r.Diagnostics)
	}
	want := []models.Reference{
		{Symbol: models.Symbol{Category: "function", ID: "ns:helper"}, Position: models.Position{Line: 2, Column: 10}},
		{Symbol: models.Symbol{Category: "tag/function", ID: "ns:ticks"}, Position: models.Position{Line: 3, Column: 28}},
		{Symbol: models.Symbol{Category: "function", ID: "minecraft:other"}, Position: models.Position{Line: 4, Column: 19}},
	}
	if len(r.References) != len(want) {
		t.Fatalf("refs = %+v", r.References)
	}
	for i := range want {
		if r.References[i] != want[i] {
			t.Errorf("ref %d = %+v, want %+v", i, r.References[i], want[i])
		}
	}
	if len(r.Declarations) != 1 || r.Declarations[0].ID != "ns:main" {
		t.Errorf("decls = %+v", r.Declarations)
	}
}

func TestParseFunctionUnknownCommand(t *testing.T) {
	r := parse(t, "data/ns/function/bad.mcfunction", "say ok\n  frobnicate now\n")
	if len(r.Diagnostics) != 1 {
		t.Fatalf("diags = %+v", r.Diagnostics)
	}
	d := r.Diagnostics[0]
	if d.Severity != models.SeverityError || d.Line != 2 || d.Column != 3 {
		t.Errorf("diag = %+v", d)
	}
	if d.Message != `Unknown command "frobnicate"` {
		t.Errorf("message = %q", d.Message)
	}
}

func TestParseFunctionTrailingWhitespace(t *testing.T) {
	r := parse(t, "data/ns/function/ws.mcfunction", "say hi  \n")
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Severity != models.SeverityWarning {
		t.Fatalf("diags = %+v", r.Diagnostics)
	}
	if r.Diagnostics[0].Column != 7 {
		t.Errorf("column = %d, want 7", r.Diagnostics[0].Column)
	}
}

func TestParseFunctionDeclarations(t *testing.T) {
	r := parse(t, "data/ns/function/decl.mcfunction",
		"#@internal\n#declare score_holder ns:tmp\n#@within ns:api/**\n#define storage ns:data\n#declare storage\n")
	if len(r.Declarations) != 3 {
		t.Fatalf("decls = %+v", r.Declarations)
	}
	tmp := r.Declarations[1]
	if tmp.Category != "score_holder" || len(tmp.Visibility) != 1 || tmp.Visibility[0].Pattern != "ns:**" {
		t.Errorf("tmp = %+v", tmp)
	}
	data := r.Declarations[2]
	if data.ID != "ns:data" || data.Visibility[0].Pattern != "ns:api/**" {
		t.Errorf("data = %+v", data)
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Line != 5 {
		t.Errorf("diags = %+v", r.Diagnostics)
	}
}

func TestParseFunctionMacroLine(t *testing.T) {
	r := parse(t, "data/ns/function/m.mcfunction", "$function $(target)\n$say $(msg)\n")
	if len(r.Diagnostics) != 0 || len(r.References) != 0 {
		t.Errorf("diags = %+v refs = %+v", r.Diagnostics, r.References)
	}
}

func TestParseTag(t *testing.T) {
	r := parse(t, "data/minecraft/tags/function/tick.json",
		"{\n  \"replace\": \"no\",\n  \"values\": [\"ns:a\", {\"id\": \"#ns:group\", \"required\": false}, 3]\n}\n")
	var errs, warns int
	for _, d := range r.Diagnostics {
		switch d.Severity {
		case models.SeverityError:
			errs++
		case models.SeverityWarning:
			warns++
		}
	}
	if errs != 1 || warns != 1 {
		t.Errorf("errors = %d warnings = %d, diags %+v", errs, warns, r.Diagnostics)
	}
	if len(r.References) != 2 {
		t.Fatalf("refs = %+v", r.References)
	}
	if r.References[0].Symbol != (models.Symbol{Category: "function", ID: "ns:a"}) {
		t.Errorf("ref 0 = %+v", r.References[0])
	}
	if r.References[1].Symbol != (models.Symbol{Category: "tag/function", ID: "ns:group"}) {
		t.Errorf("ref 1 = %+v", r.References[1])
	}
	if r.References[0].Line != 3 {
		t.Errorf("ref 0 line = %d, want 3", r.References[0].Line)
	}
}

func TestParseJSONSyntaxError(t *testing.T) {
	r := parse(t, "data/ns/advancement/a.json", "{\n  \"criteria\": ,\n}")
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Severity != models.SeverityError {
		t.Fatalf("diags = %+v", r.Diagnostics)
	}
	if r.Diagnostics[0].Line != 2 {
		t.Errorf("line = %d, want 2", r.Diagnostics[0].Line)
	}
}

func TestParseAdvancementReward(t *testing.T) {
	r := parse(t, "data/ns/advancement/a.json", `{"rewards": {"function": "ns:reward"}}`)
	if len(r.References) != 1 || r.References[0].ID != "ns:reward" {
		t.Errorf("refs = %+v", r.References)
	}
}

func TestParseWithoutResource(t *testing.T) {
	_, err := NewBuiltin().Parse(context.Background(), Document{Rel: "x.json"})
	if !errors.Is(err, apperr.ErrValidator) {
		t.Fatalf("expected ErrValidator, got %v", err)
	}
}

func TestSupports(t *testing.T) {
	b := NewBuiltin()
	if !b.Supports("data/a/function/x.mcfunction") || !b.Supports("data/a/recipe/x.json") {
		t.Error("expected support")
	}
	if b.Supports("data/a/structure/x.nbt") {
		t.Error("nbt should be unsupported")
	}
}
