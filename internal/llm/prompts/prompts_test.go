package prompts

import (
	"strings"
	"testing"

	"github.com/pavelanni/bandcoach/internal/model"
)

func TestExaminerSystem(t *testing.T) {
	sys, err := ExaminerSystem()
	if err != nil {
		t.Fatalf("ExaminerSystem: %v", err)
	}
	for _, want := range []string{"BAND ROUNDING RULES", "ANTI-INFLATION", "WORD COUNT RULES", `"overallBand"`, `"bandRationale"`} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildMarkPrompt(t *testing.T) {
	essay := "  Some people believe <b>tags</b> stay.\n\nSecond paragraph.  "

	tests := []struct {
		name        string
		data        MarkData
		contains    []string
		notContains []string
	}{
		{
			name:        "task2",
			data:        MarkData{TaskType: model.Task2, PromptText: "Discuss both views.", WordCount: 260, Essay: essay},
			contains:    []string{"IELTS Writing Task 2 Question:", "Discuss both views.", "Student Essay (260 words):", essay},
			notContains: []string{"Visual description"},
		},
		{
			name: "task1 with visual",
			data: MarkData{
				TaskType: model.Task1, PromptText: "The chart shows...", WordCount: 140,
				VisualDescription: "Bar chart of rainfall", Essay: "The chart illustrates rainfall.",
			},
			contains: []string{"IELTS Writing Task 1 Question:", "Bar chart of rainfall", "Student Essay (140 words):"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildMarkPrompt(tt.data)
			if err != nil {
				t.Fatalf("BuildMarkPrompt: %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("prompt missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.notContains {
				if strings.Contains(got, s) {
					t.Errorf("prompt should not contain %q", s)
				}
			}
		})
	}
}

func TestBuildGeneratePrompt(t *testing.T) {
	qt := model.AgreeDisagree
	samples := []model.PromptRecord{{
		ID: "secret-id", Task: model.Task2, Task2QuestionType: &qt,
		PromptText: "Some people think cities are better.", Difficulty: 2, TopicTags: []string{"cities"},
	}}

	t.Run("task2 with type", func(t *testing.T) {
		got, err := BuildGeneratePrompt(GenerateData{Task: model.Task2, Count: 3, Task2QuestionType: string(qt), Samples: samples})
		if err != nil {
			t.Fatalf("BuildGeneratePrompt: %v", err)
		}
		for _, s := range []string{"Generate 3 new, original IELTS Task 2 questions (type: agree_disagree)", `"task2_question_type": "agree_disagree"`, "Some people think cities are better."} {
			if !strings.Contains(got, s) {
				t.Errorf("prompt missing %q:\n%s", s, got)
			}
		}
		if strings.Contains(got, "secret-id") {
			t.Error("sample ids should not be sent")
		}
	})

	t.Run("task1 without type", func(t *testing.T) {
		got, err := BuildGeneratePrompt(GenerateData{Task: model.Task1, Count: 1})
		if err != nil {
			t.Fatalf("BuildGeneratePrompt: %v", err)
		}
		if !strings.Contains(got, `"task1_type": "<graph|table|process|map>"`) {
			t.Errorf("task1 schema placeholder missing:\n%s", got)
		}
		if !strings.Contains(got, "Style examples from our question bank:\n[]") {
			t.Errorf("empty samples should render as []:\n%s", got)
		}
	})
}
