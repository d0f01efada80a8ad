package testkit

import "testing"

func rank(stage int) int { return stage }

func TestCheckMonotonicStagesAcceptsForwardOnly(t *testing.T) {
	events := []StageEvent{
		{Name: "Foo", Stage: 1},
		{Name: "Foo", Stage: 2},
		{Name: "Foo", Stage: 3},
	}
	if err := CheckMonotonicStages(events, rank, 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckMonotonicStagesRejectsRegression(t *testing.T) {
	events := []StageEvent{
		{Name: "Foo", Stage: 3},
		{Name: "Foo", Stage: 1},
	}
	if err := CheckMonotonicStages(events, rank, 99); err == nil {
		t.Fatalf("expected an error for a backward transition")
	}
}

func TestCheckMonotonicStagesAllowsFailureAsSink(t *testing.T) {
	events := []StageEvent{
		{Name: "Foo", Stage: 1},
		{Name: "Foo", Stage: 99}, // failStage
	}
	if err := CheckMonotonicStages(events, rank, 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckMonotonicStagesRejectsTransitionAfterFailure(t *testing.T) {
	events := []StageEvent{
		{Name: "Foo", Stage: 99}, // failStage
		{Name: "Foo", Stage: 1},
	}
	if err := CheckMonotonicStages(events, rank, 99); err == nil {
		t.Fatalf("expected an error for a transition observed after failure")
	}
}

func TestCheckSingleMaterialization(t *testing.T) {
	if err := CheckSingleMaterialization(map[string]int{"Foo": 1, "Bar": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckSingleMaterialization(map[string]int{"Foo": 2}); err == nil {
		t.Fatalf("expected an error for a double materialization")
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("Foo", 1)
	r.ObserveStage("Foo", 2)
	r.ObserveMaterialize("Foo")
	if err := CheckMonotonicStages(r.Events, rank, 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckSingleMaterialization(r.MaterializeCounts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
