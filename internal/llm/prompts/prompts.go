// Package prompts builds the system instructions sent to the dialogue
// provider. Templates live in embedded text files so the exam wording
// can be tuned without touching code.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sync"
	"text/template"

	"github.com/mbender/sprechtrainer/internal/model"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var promptFiles = []string{
	"oral_default",
	"picture_detail",
	"picture_opinion",
	"planning",
	"grade_oral",
	"grade_writing",
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range promptFiles {
			path := "prompts/" + name + ".txt"
			content, err := promptFS.ReadFile(path)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + path + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + path + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func render(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// partNames maps a module to its exam part label used in prompts.
var partNames = map[model.Module]string{
	model.ModuleIntro:    "Teil 1: Sich vorstellen",
	model.ModulePicture:  "Teil 2: Bildbeschreibung",
	model.ModulePlanning: "Teil 3: Gemeinsam planen",
	model.ModuleWriting:  "Schriftlicher Teil: Brief schreiben",
}

// OralData is the template payload for oral turn instructions.
type OralData struct {
	Part     string
	Scenario *model.PlanningScenario
}

// Oral returns the system instruction for an oral exchange. The picture
// module varies by turn index: the first follow-up probes a visible
// detail, the second the participant's opinion. Planning instructions
// encode the scenario's discussion points.
func Oral(m model.Module, turnIndex int, scenario *model.PlanningScenario) (string, error) {
	data := OralData{Part: partNames[m], Scenario: scenario}
	switch m {
	case model.ModulePicture:
		switch turnIndex {
		case 0:
			return render("picture_detail", data)
		case 1:
			return render("picture_opinion", data)
		}
	case model.ModulePlanning:
		if scenario == nil {
			return "", fmt.Errorf("planning prompt requires a scenario")
		}
		return render("planning", data)
	}
	return render("oral_default", data)
}

// GradeData is the template payload for grading instructions.
type GradeData struct {
	Part string
	Task *model.WritingTask
}

// GradeOral returns the grading instruction for an oral transcript.
func GradeOral(m model.Module) (string, error) {
	return render("grade_oral", GradeData{Part: partNames[m]})
}

// GradeWriting returns the grading instruction for a written
// submission, emphasizing coverage of the task points.
func GradeWriting(task model.WritingTask) (string, error) {
	return render("grade_writing", GradeData{Part: partNames[model.ModuleWriting], Task: &task})
}
