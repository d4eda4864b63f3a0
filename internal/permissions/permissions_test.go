package permissions

import "testing"

func TestForPhase_Research(t *testing.T) {
	tools, err := ForPhase(PhaseResearch)
	if err != nil {
		t.Fatalf("ForPhase: %v", err)
	}
	if !tools.Allows("Read") || !tools.Allows("Write") {
		t.Fatalf("expected Read/Write allowed, got %v", tools)
	}
	if tools.Allows("Bash") {
		t.Fatal("research phase must not allow Bash")
	}
}

func TestForPhase_Unknown(t *testing.T) {
	if _, err := ForPhase(Phase("nonsense")); err == nil {
		t.Fatal("expected error for unrecognized phase")
	}
}

func TestIntersect_NarrowsNeverWidens(t *testing.T) {
	phase, _ := ForPhase(PhaseImplement)

	narrowed := Intersect(phase, []string{"Read", "Edit"})
	if !narrowed.Allows("Read") || !narrowed.Allows("Edit") {
		t.Fatal("expected Read/Edit to survive the intersection")
	}
	if narrowed.Allows("Bash") {
		t.Fatal("skill narrowing must drop tools not re-declared")
	}

	widened := Intersect(phase, []string{"Read", "Edit", "SomeToolPhaseNeverGranted"})
	if widened.Allows("SomeToolPhaseNeverGranted") {
		t.Fatal("a skill must never be able to grant a tool the phase didn't already allow")
	}
}

func TestIntersect_EmptySkillLeavesPhaseUnchanged(t *testing.T) {
	phase, _ := ForPhase(PhasePR)
	if got := Intersect(phase, nil); len(got) != len(phase) {
		t.Fatalf("expected unchanged set, got %v vs %v", got, phase)
	}
}
