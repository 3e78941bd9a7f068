package prompts

import (
	"strings"
	"testing"

	"github.com/mbender/sprechtrainer/internal/model"
)

func TestOralDefault(t *testing.T) {
	got, err := Oral(model.ModuleIntro, 0, nil)
	if err != nil {
		t.Fatalf("Oral: %v", err)
	}
	if !strings.Contains(got, "Teil 1: Sich vorstellen") {
		t.Errorf("intro prompt missing part label:\n%s", got)
	}
}

func TestPictureVariesByTurn(t *testing.T) {
	first, err := Oral(model.ModulePicture, 0, nil)
	if err != nil {
		t.Fatalf("Oral(turn 0): %v", err)
	}
	second, err := Oral(model.ModulePicture, 1, nil)
	if err != nil {
		t.Fatalf("Oral(turn 1): %v", err)
	}
	if first == second {
		t.Error("picture prompts for turn 0 and 1 are identical")
	}
	if !strings.Contains(second, "Meinung") {
		t.Errorf("second picture prompt should ask for an opinion:\n%s", second)
	}
	// Later turns fall back to the default instruction.
	third, err := Oral(model.ModulePicture, 2, nil)
	if err != nil {
		t.Fatalf("Oral(turn 2): %v", err)
	}
	if third == first || third == second {
		t.Error("turn 2 should use the default instruction")
	}
}

func TestPlanningEmbedsScenario(t *testing.T) {
	scenario := &model.PlanningScenario{
		Title:  "Ein Ausflug am Wochenende",
		Points: []string{"Wohin fahren wir?", "Treffpunkt"},
	}
	got, err := Oral(model.ModulePlanning, 0, scenario)
	if err != nil {
		t.Fatalf("Oral: %v", err)
	}
	if !strings.Contains(got, scenario.Title) {
		t.Errorf("planning prompt missing scenario title:\n%s", got)
	}
	for _, p := range scenario.Points {
		if !strings.Contains(got, p) {
			t.Errorf("planning prompt missing point %q", p)
		}
	}
}

func TestPlanningRequiresScenario(t *testing.T) {
	if _, err := Oral(model.ModulePlanning, 0, nil); err == nil {
		t.Fatal("expected error for planning without scenario")
	}
}

func TestGradeOral(t *testing.T) {
	got, err := GradeOral(model.ModulePlanning)
	if err != nil {
		t.Fatalf("GradeOral: %v", err)
	}
	if !strings.Contains(got, "Teil 3: Gemeinsam planen") {
		t.Errorf("grading prompt missing part label:\n%s", got)
	}
	if !strings.Contains(got, "JSON") {
		t.Errorf("grading prompt missing output format instruction:\n%s", got)
	}
}

func TestGradeWritingEmbedsTask(t *testing.T) {
	task := model.WritingTask{
		Title:  "Brief an die Vermieterin",
		Prompt: "Ihre Heizung ist kaputt.",
		Points: []string{"Grund des Schreibens", "Bitte um Reparatur"},
	}
	got, err := GradeWriting(task)
	if err != nil {
		t.Fatalf("GradeWriting: %v", err)
	}
	if !strings.Contains(got, task.Prompt) {
		t.Errorf("writing grading prompt missing task prompt:\n%s", got)
	}
	for _, p := range task.Points {
		if !strings.Contains(got, p) {
			t.Errorf("writing grading prompt missing point %q", p)
		}
	}
}
