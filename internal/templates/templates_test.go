package templates

import "testing"

func TestRender_Research(t *testing.T) {
	tpl, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := tpl.Render("research", PromptData{
		ID:               "001-foo",
		Title:             "Foo",
		Overview:          "Do the foo thing",
		CompletionSignal: "<promise>COMPLETE</promise>",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty rendered prompt")
	}
}

func TestRender_OverrideTakesPrecedence(t *testing.T) {
	tpl, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tpl.WithOverrides(func(phase string) (string, bool) {
		if phase == "research" {
			return "custom prompt for {{.ID}}", true
		}
		return "", false
	})
	out, err := tpl.Render("research", PromptData{ID: "001-foo"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "custom prompt for 001-foo" {
		t.Fatalf("expected override to take precedence, got %q", out)
	}
}

func TestRender_UnknownPhaseErrors(t *testing.T) {
	tpl, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tpl.Render("nonsense", PromptData{}); err == nil {
		t.Fatal("expected error for unknown phase template")
	}
}
