package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestPromptRecordToPrompt(t *testing.T) {
	tests := []struct {
		name    string
		rec     PromptRecord
		want    Variant
		wantErr bool
	}{
		{
			name: "task2",
			rec: PromptRecord{
				Task: Task2, Task2QuestionType: ptr(DiscussBothViews),
				PromptText: "Some people think...", Difficulty: 2,
			},
			want: Task2Variant{QuestionType: DiscussBothViews},
		},
		{
			name: "graph",
			rec: PromptRecord{
				Task: Task1, Task1Type: ptr(Task1Graph), VisualDescription: ptr("A line graph"),
				PromptText: "The graph shows...", Difficulty: 1,
			},
			want: GraphVariant{VisualDescription: "A line graph"},
		},
		{
			name: "process with metadata",
			rec: PromptRecord{
				Task: Task1, Task1Type: ptr(Task1Process), VisualDescription: ptr("Tea production"),
				PromptText: "The diagram shows...", Difficulty: 3,
				Metadata: map[string]any{"stages": 6.0, "flow": "linear", "inputs": []any{"leaves"}, "output": "tea"},
			},
			want: ProcessVariant{VisualDescription: "Tea production", Stages: 6, Flow: FlowLinear, Inputs: []string{"leaves"}, Output: "tea"},
		},
		{
			name: "map with years",
			rec: PromptRecord{
				Task: Task1, Task1Type: ptr(Task1Map), VisualDescription: ptr("A town"),
				PromptText: "The maps show...", Difficulty: 2,
				Metadata: map[string]any{"years": []any{1990.0, 2020.0}, "key_changes": []any{"new road"}},
			},
			want: MapVariant{VisualDescription: "A town", Years: [2]int{1990, 2020}, KeyChanges: []string{"new road"}},
		},
		{
			name: "task1 with task2 question type",
			rec: PromptRecord{
				Task: Task1, Task1Type: ptr(Task1Table), Task2QuestionType: ptr(AgreeDisagree),
				VisualDescription: ptr("x"), PromptText: "x", Difficulty: 1,
			},
			wantErr: true,
		},
		{
			name: "task2 with task1 type",
			rec: PromptRecord{
				Task: Task2, Task1Type: ptr(Task1Graph), Task2QuestionType: ptr(AgreeDisagree),
				PromptText: "x", Difficulty: 1,
			},
			wantErr: true,
		},
		{
			name:    "task1 without description",
			rec:     PromptRecord{Task: Task1, Task1Type: ptr(Task1Graph), PromptText: "x", Difficulty: 1},
			wantErr: true,
		},
		{
			name:    "difficulty out of range",
			rec:     PromptRecord{Task: Task2, Task2QuestionType: ptr(AgreeDisagree), PromptText: "x", Difficulty: 4},
			wantErr: true,
		},
		{
			name: "bad process flow",
			rec: PromptRecord{
				Task: Task1, Task1Type: ptr(Task1Process), VisualDescription: ptr("x"),
				PromptText: "x", Difficulty: 1, Metadata: map[string]any{"flow": "spiral"},
			},
			wantErr: true,
		},
		{
			name:    "unknown task",
			rec:     PromptRecord{Task: "task3", PromptText: "x", Difficulty: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rec.ToPrompt()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrompt) {
					t.Fatalf("expected ErrInvalidPrompt, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToPrompt: %v", err)
			}
			if !reflect.DeepEqual(got.Variant, tt.want) {
				t.Errorf("variant = %#v, want %#v", got.Variant, tt.want)
			}
		})
	}
}

func TestPromptRecordRoundTrip(t *testing.T) {
	wp := WritingPrompt{
		ID:         "p1",
		PromptText: "The maps show changes to a village.",
		Difficulty: 2,
		TopicTags:  []string{"urban"},
		Metadata:   map[string]any{},
		Variant:    MapVariant{VisualDescription: "Two maps", Years: [2]int{1995, 2015}, KeyChanges: []string{"school built"}},
	}

	data, err := json.Marshal(wp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal flat: %v", err)
	}
	if flat["task"] != "task1" || flat["task1_type"] != "map" || flat["task2_question_type"] != nil {
		t.Errorf("unexpected flat layout: %v", flat)
	}

	var back WritingPrompt
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Variant, wp.Variant) {
		t.Errorf("variant = %#v, want %#v", back.Variant, wp.Variant)
	}
	if back.Task() != Task1 {
		t.Errorf("Task() = %q, want task1", back.Task())
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Environment", "Climate Change", "environment", "  ", "Work & Life"})
	want := []string{"environment", "climate-change", "work-and-life"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestVisualDescription(t *testing.T) {
	tests := []struct {
		v    Variant
		want string
	}{
		{GraphVariant{VisualDescription: "g"}, "g"},
		{TableVariant{VisualDescription: "t"}, "t"},
		{ProcessVariant{VisualDescription: "p"}, "p"},
		{MapVariant{VisualDescription: "m"}, "m"},
		{Task2Variant{QuestionType: AgreeDisagree}, ""},
	}
	for _, tt := range tests {
		p := WritingPrompt{Variant: tt.v}
		if got := p.VisualDescription(); got != tt.want {
			t.Errorf("VisualDescription(%T) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
