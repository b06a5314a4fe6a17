package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"

	"github.com/pavelanni/bandcoach/internal/model"
)

//go:embed templates/*.txt
var embedded embed.FS

var (
	loadOnce       sync.Once
	loadErr        error
	examinerSystem string
	generateSystem string
	markTemplate   *template.Template
	genTemplate    *template.Template
)

// MarkData holds template data for the marking user message.
type MarkData struct {
	TaskType          model.TaskType
	PromptText        string
	VisualDescription string
	WordCount         int
	Essay             string
}

// GenerateData holds template data for the question generation user message.
type GenerateData struct {
	Task              model.TaskType
	Count             int
	Task1Type         string
	Task2QuestionType string
	Samples           []model.PromptRecord
}

// Load parses the prompt templates from fsys. It runs once per process; later
// calls return the first result.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		read := func(name string) (string, error) {
			b, err := fs.ReadFile(fsys, "templates/"+name)
			if err != nil {
				return "", fmt.Errorf("read prompt file %s: %w", name, err)
			}
			return string(b), nil
		}
		parse := func(name string) (*template.Template, error) {
			text, err := read(name)
			if err != nil {
				return nil, err
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
			if err != nil {
				return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
			}
			return tmpl, nil
		}

		if examinerSystem, loadErr = read("examiner_system.txt"); loadErr != nil {
			return
		}
		if generateSystem, loadErr = read("generate_system.txt"); loadErr != nil {
			return
		}
		if markTemplate, loadErr = parse("mark_user.txt"); loadErr != nil {
			return
		}
		genTemplate, loadErr = parse("generate_user.txt")
	})
	return loadErr
}

func ensureLoaded() error {
	if err := Load(embedded); err != nil {
		return err
	}
	if markTemplate == nil || genTemplate == nil {
		return errors.New("prompt templates not initialized")
	}
	return nil
}

// ExaminerSystem returns the fixed marking instruction: rubric, rounding rule,
// anti-inflation and word-count rules and the JSON output schema.
func ExaminerSystem() (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	return examinerSystem, nil
}

// GenerateSystem returns the fixed question writer instruction.
func GenerateSystem() (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	return generateSystem, nil
}

// BuildMarkPrompt renders the user message for a marking call. The essay is
// passed through verbatim.
func BuildMarkPrompt(d MarkData) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	d.PromptText = strings.TrimSpace(d.PromptText)
	d.VisualDescription = strings.TrimSpace(d.VisualDescription)

	var buf bytes.Buffer
	if err := markTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sampleRecord is the subset of a stored prompt shown to the oracle as a style example.
type sampleRecord struct {
	Task              model.TaskType           `json:"task"`
	Task1Type         *model.Task1Type         `json:"task1_type"`
	Task2QuestionType *model.Task2QuestionType `json:"task2_question_type"`
	PromptText        string                   `json:"prompt_text"`
	Difficulty        int                      `json:"difficulty"`
	TopicTags         []string                 `json:"topic_tags"`
	VisualDescription *string                  `json:"visual_description"`
	Metadata          map[string]any           `json:"metadata"`
}

// BuildGeneratePrompt renders the user message for a generation call.
func BuildGeneratePrompt(d GenerateData) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}

	samples := make([]sampleRecord, len(d.Samples))
	for i, r := range d.Samples {
		samples[i] = sampleRecord{
			Task:              r.Task,
			Task1Type:         r.Task1Type,
			Task2QuestionType: r.Task2QuestionType,
			PromptText:        r.PromptText,
			Difficulty:        r.Difficulty,
			TopicTags:         r.TopicTags,
			VisualDescription: r.VisualDescription,
			Metadata:          r.Metadata,
		}
	}
	samplesJSON, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode samples: %w", err)
	}

	data := struct {
		Task              string
		Count             int
		Task1Type         string
		Task2QuestionType string
		Samples           string
	}{
		Task:              string(d.Task),
		Count:             d.Count,
		Task1Type:         d.Task1Type,
		Task2QuestionType: d.Task2QuestionType,
		Samples:           string(samplesJSON),
	}

	var buf bytes.Buffer
	if err := genTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
