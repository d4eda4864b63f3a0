package statemachine

import (
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
)

func TestNextState(t *testing.T) {
	cases := map[item.State]item.State{
		item.StateIdea:         item.StateResearched,
		item.StateResearched:   item.StatePlanned,
		item.StatePlanned:      item.StateImplementing,
		item.StateImplementing: item.StateCritique,
		item.StateCritique:     item.StateInPR,
		item.StateInPR:         item.StateDone,
		item.StateDone:         "",
	}
	for from, want := range cases {
		if got := NextState(from); got != want {
			t.Errorf("NextState(%s) = %q, want %q", from, got, want)
		}
	}
}

func TestAllowedNextStates_Linear(t *testing.T) {
	states := AllowedNextStates(item.StateIdea)
	if len(states) != 1 || states[0] != item.StateResearched {
		t.Fatalf("AllowedNextStates(idea) = %v", states)
	}
	if len(AllowedNextStates(item.StateDone)) != 0 {
		t.Fatal("expected no next states from done")
	}
}

func baseItem(state item.State) *item.Item {
	return &item.Item{ID: "001-test", State: state, UpdatedAt: time.Unix(0, 0)}
}

func TestApplyStateTransition_ToResearched(t *testing.T) {
	it := baseItem(item.StateIdea)
	now := time.Unix(100, 0)

	if _, err := ApplyStateTransition(it, TransitionContext{HasResearchMD: false}, now); err == nil {
		t.Fatal("expected error without research.md")
	}

	got, err := ApplyStateTransition(it, TransitionContext{HasResearchMD: true}, now)
	if err != nil {
		t.Fatalf("ApplyStateTransition: %v", err)
	}
	if got.State != item.StateResearched {
		t.Errorf("state = %q, want researched", got.State)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt not refreshed")
	}
	if it.State != item.StateIdea {
		t.Error("ApplyStateTransition must not mutate its input")
	}
}

func TestApplyStateTransition_ToPlanned(t *testing.T) {
	it := baseItem(item.StateResearched)
	now := time.Unix(100, 0)

	prdNoPending := &item.PRD{Stories: []item.Story{{ID: "US-1", Status: item.StoryDone}}}
	if _, err := ApplyStateTransition(it, TransitionContext{HasPlanMD: true, PRD: prdNoPending}, now); err == nil {
		t.Fatal("expected error with no pending stories")
	}

	prdPending := &item.PRD{Stories: []item.Story{{ID: "US-1", Status: item.StoryPending}}}
	got, err := ApplyStateTransition(it, TransitionContext{HasPlanMD: true, PRD: prdPending}, now)
	if err != nil {
		t.Fatalf("ApplyStateTransition: %v", err)
	}
	if got.State != item.StatePlanned {
		t.Errorf("state = %q, want planned", got.State)
	}
}

func TestApplyStateTransition_ToCritiqueRequiresAllDone(t *testing.T) {
	it := baseItem(item.StateImplementing)
	now := time.Unix(100, 0)

	partial := &item.PRD{Stories: []item.Story{{ID: "US-1", Status: item.StoryDone}, {ID: "US-2", Status: item.StoryPending}}}
	if _, err := ApplyStateTransition(it, TransitionContext{PRD: partial}, now); err == nil {
		t.Fatal("expected error with a pending story remaining")
	}

	allDone := &item.PRD{Stories: []item.Story{{ID: "US-1", Status: item.StoryDone}}}
	got, err := ApplyStateTransition(it, TransitionContext{PRD: allDone}, now)
	if err != nil {
		t.Fatalf("ApplyStateTransition: %v", err)
	}
	if got.State != item.StateCritique {
		t.Errorf("state = %q, want critique", got.State)
	}
}

func TestApplyStateTransition_ToInPrRequiresPR(t *testing.T) {
	it := baseItem(item.StateCritique)
	now := time.Unix(100, 0)
	allDone := &item.PRD{Stories: []item.Story{{ID: "US-1", Status: item.StoryDone}}}

	if _, err := ApplyStateTransition(it, TransitionContext{PRD: allDone, HasPR: false}, now); err == nil {
		t.Fatal("expected error without a pr")
	}
	got, err := ApplyStateTransition(it, TransitionContext{PRD: allDone, HasPR: true}, now)
	if err != nil {
		t.Fatalf("ApplyStateTransition: %v", err)
	}
	if got.State != item.StateInPR {
		t.Errorf("state = %q, want in_pr", got.State)
	}
}

func TestApplyStateTransition_ToDoneRequiresMerged(t *testing.T) {
	it := baseItem(item.StateInPR)
	now := time.Unix(100, 0)

	if _, err := ApplyStateTransition(it, TransitionContext{PRMerged: false}, now); err == nil {
		t.Fatal("expected error when pr not merged")
	}
	got, err := ApplyStateTransition(it, TransitionContext{PRMerged: true}, now)
	if err != nil {
		t.Fatalf("ApplyStateTransition: %v", err)
	}
	if got.State != item.StateDone {
		t.Errorf("state = %q, want done", got.State)
	}
}

func TestApplyStateTransition_TerminalStateErrors(t *testing.T) {
	it := baseItem(item.StateDone)
	if _, err := ApplyStateTransition(it, TransitionContext{}, time.Unix(0, 0)); err == nil {
		t.Fatal("expected error transitioning from a terminal state")
	}
}
