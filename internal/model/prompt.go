package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// ErrInvalidPrompt is returned when a prompt record breaks the task/sub-type rules.
var ErrInvalidPrompt = errors.New("invalid writing prompt")

// Task1Type is the kind of visual a task1 prompt describes.
type Task1Type string

const (
	Task1Graph   Task1Type = "graph"
	Task1Table   Task1Type = "table"
	Task1Process Task1Type = "process"
	Task1Map     Task1Type = "map"
)

// Valid reports whether t is a known task1 type.
func (t Task1Type) Valid() bool {
	switch t {
	case Task1Graph, Task1Table, Task1Process, Task1Map:
		return true
	}
	return false
}

// Task2QuestionType is the question format of a task2 prompt.
type Task2QuestionType string

const (
	AgreeDisagree           Task2QuestionType = "agree_disagree"
	DiscussBothViews        Task2QuestionType = "discuss_both_views"
	ProblemSolution         Task2QuestionType = "problem_solution"
	AdvantagesDisadvantages Task2QuestionType = "advantages_disadvantages"
	TwoDirectQuestions      Task2QuestionType = "two_direct_questions"
)

// Valid reports whether t is a known task2 question type.
func (t Task2QuestionType) Valid() bool {
	switch t {
	case AgreeDisagree, DiscussBothViews, ProblemSolution, AdvantagesDisadvantages, TwoDirectQuestions:
		return true
	}
	return false
}

// ProcessFlow describes how the stages of a process diagram connect.
type ProcessFlow string

const (
	FlowLinear   ProcessFlow = "linear"
	FlowCyclical ProcessFlow = "cyclical"
)

// Variant is the task-specific part of a writing prompt. The concrete types are
// GraphVariant, TableVariant, ProcessVariant, MapVariant and Task2Variant.
type Variant interface {
	Task() TaskType
	isVariant()
}

// GraphVariant is a task1 line/bar/pie chart prompt.
type GraphVariant struct {
	VisualDescription string
}

// TableVariant is a task1 table prompt.
type TableVariant struct {
	VisualDescription string
}

// ProcessVariant is a task1 process diagram prompt.
type ProcessVariant struct {
	VisualDescription string
	Stages            int
	Flow              ProcessFlow
	Inputs            []string
	Output            string
}

// MapVariant is a task1 map comparison prompt.
type MapVariant struct {
	VisualDescription string
	Years             [2]int
	KeyChanges        []string
	Retained          []string
}

// Task2Variant is an essay prompt.
type Task2Variant struct {
	QuestionType Task2QuestionType
}

func (GraphVariant) Task() TaskType   { return Task1 }
func (TableVariant) Task() TaskType   { return Task1 }
func (ProcessVariant) Task() TaskType { return Task1 }
func (MapVariant) Task() TaskType     { return Task1 }
func (Task2Variant) Task() TaskType   { return Task2 }

func (GraphVariant) isVariant()   {}
func (TableVariant) isVariant()   {}
func (ProcessVariant) isVariant() {}
func (MapVariant) isVariant()     {}
func (Task2Variant) isVariant()   {}

// WritingPrompt is a question in the catalog.
type WritingPrompt struct {
	ID         string
	PromptText string
	Difficulty int
	TopicTags  []string
	ImageURL   *string
	Metadata   map[string]any
	CreatedAt  time.Time
	Variant    Variant
}

// Task returns the IELTS task the prompt belongs to.
func (p WritingPrompt) Task() TaskType {
	return p.Variant.Task()
}

// VisualDescription returns the description of the task1 visual, or "" for task2.
func (p WritingPrompt) VisualDescription() string {
	switch v := p.Variant.(type) {
	case GraphVariant:
		return v.VisualDescription
	case TableVariant:
		return v.VisualDescription
	case ProcessVariant:
		return v.VisualDescription
	case MapVariant:
		return v.VisualDescription
	case Task2Variant:
		return ""
	}
	return ""
}

// MarshalJSON writes the flat record layout.
func (p WritingPrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// UnmarshalJSON reads the flat record layout and validates it.
func (p *WritingPrompt) UnmarshalJSON(data []byte) error {
	var rec PromptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	wp, err := rec.ToPrompt()
	if err != nil {
		return err
	}
	*p = wp
	return nil
}

// PromptRecord is the flat layout used on the wire, in storage and for generated candidates.
type PromptRecord struct {
	ID                string             `json:"id,omitempty"`
	Task              TaskType           `json:"task" validate:"required,oneof=task1 task2"`
	Task1Type         *Task1Type         `json:"task1_type"`
	Task2QuestionType *Task2QuestionType `json:"task2_question_type"`
	PromptText        string             `json:"prompt_text" validate:"required"`
	Difficulty        int                `json:"difficulty" validate:"gte=1,lte=3"`
	TopicTags         []string           `json:"topic_tags"`
	ImageURL          *string            `json:"image_url"`
	VisualDescription *string            `json:"visual_description"`
	Metadata          map[string]any     `json:"metadata"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
}

type processMeta struct {
	Stages int         `json:"stages"`
	Flow   ProcessFlow `json:"flow"`
	Inputs []string    `json:"inputs"`
	Output string      `json:"output"`
}

type mapMeta struct {
	Years      []int    `json:"years"`
	KeyChanges []string `json:"key_changes"`
	Retained   []string `json:"retained"`
}

// ToPrompt converts the flat record into a WritingPrompt, enforcing that a task1
// record carries no task2 question type and the reverse.
func (r PromptRecord) ToPrompt() (WritingPrompt, error) {
	wp := WritingPrompt{
		ID:         r.ID,
		PromptText: strings.TrimSpace(r.PromptText),
		Difficulty: r.Difficulty,
		TopicTags:  NormalizeTags(r.TopicTags),
		ImageURL:   r.ImageURL,
		Metadata:   r.Metadata,
	}
	if wp.Metadata == nil {
		wp.Metadata = map[string]any{}
	}
	if r.CreatedAt != nil {
		wp.CreatedAt = *r.CreatedAt
	}
	if wp.PromptText == "" {
		return WritingPrompt{}, fmt.Errorf("%w: prompt_text is required", ErrInvalidPrompt)
	}
	if r.Difficulty < 1 || r.Difficulty > 3 {
		return WritingPrompt{}, fmt.Errorf("%w: difficulty must be 1, 2 or 3", ErrInvalidPrompt)
	}

	switch r.Task {
	case Task1:
		if r.Task2QuestionType != nil && *r.Task2QuestionType != "" {
			return WritingPrompt{}, fmt.Errorf("%w: task1 prompt cannot have task2_question_type", ErrInvalidPrompt)
		}
		if r.Task1Type == nil || !r.Task1Type.Valid() {
			return WritingPrompt{}, fmt.Errorf("%w: task1_type must be graph, table, process or map", ErrInvalidPrompt)
		}
		desc := ""
		if r.VisualDescription != nil {
			desc = strings.TrimSpace(*r.VisualDescription)
		}
		if desc == "" {
			return WritingPrompt{}, fmt.Errorf("%w: task1 prompt needs a visual_description", ErrInvalidPrompt)
		}
		v, err := task1Variant(*r.Task1Type, desc, wp.Metadata)
		if err != nil {
			return WritingPrompt{}, err
		}
		wp.Variant = v
	case Task2:
		if r.Task1Type != nil && *r.Task1Type != "" {
			return WritingPrompt{}, fmt.Errorf("%w: task2 prompt cannot have task1_type", ErrInvalidPrompt)
		}
		if r.VisualDescription != nil && strings.TrimSpace(*r.VisualDescription) != "" {
			return WritingPrompt{}, fmt.Errorf("%w: task2 prompt cannot have visual_description", ErrInvalidPrompt)
		}
		if r.Task2QuestionType == nil || !r.Task2QuestionType.Valid() {
			return WritingPrompt{}, fmt.Errorf("%w: unknown task2_question_type", ErrInvalidPrompt)
		}
		wp.Variant = Task2Variant{QuestionType: *r.Task2QuestionType}
	default:
		return WritingPrompt{}, fmt.Errorf("%w: task must be task1 or task2", ErrInvalidPrompt)
	}
	return wp, nil
}

func task1Variant(t Task1Type, desc string, meta map[string]any) (Variant, error) {
	switch t {
	case Task1Graph:
		return GraphVariant{VisualDescription: desc}, nil
	case Task1Table:
		return TableVariant{VisualDescription: desc}, nil
	case Task1Process:
		var pm processMeta
		if err := decodeMetadata(meta, &pm); err != nil {
			return nil, err
		}
		if pm.Flow != "" && pm.Flow != FlowLinear && pm.Flow != FlowCyclical {
			return nil, fmt.Errorf("%w: process flow must be linear or cyclical", ErrInvalidPrompt)
		}
		return ProcessVariant{
			VisualDescription: desc,
			Stages:            pm.Stages,
			Flow:              pm.Flow,
			Inputs:            pm.Inputs,
			Output:            pm.Output,
		}, nil
	case Task1Map:
		var mm mapMeta
		if err := decodeMetadata(meta, &mm); err != nil {
			return nil, err
		}
		v := MapVariant{VisualDescription: desc, KeyChanges: mm.KeyChanges, Retained: mm.Retained}
		switch len(mm.Years) {
		case 0:
		case 2:
			v.Years = [2]int{mm.Years[0], mm.Years[1]}
		default:
			return nil, fmt.Errorf("%w: map years must be a pair", ErrInvalidPrompt)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: unknown task1_type %q", ErrInvalidPrompt, t)
}

func decodeMetadata(meta map[string]any, dst any) error {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrInvalidPrompt, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrInvalidPrompt, err)
	}
	return nil
}

// Record flattens the prompt for storage and transport.
func (p WritingPrompt) Record() PromptRecord {
	rec := PromptRecord{
		ID:         p.ID,
		PromptText: p.PromptText,
		Difficulty: p.Difficulty,
		TopicTags:  p.TopicTags,
		ImageURL:   p.ImageURL,
		Metadata:   make(map[string]any, len(p.Metadata)),
	}
	if rec.TopicTags == nil {
		rec.TopicTags = []string{}
	}
	for k, v := range p.Metadata {
		rec.Metadata[k] = v
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt
		rec.CreatedAt = &t
	}

	task1 := func(t Task1Type, desc string) {
		rec.Task = Task1
		rec.Task1Type = &t
		rec.VisualDescription = &desc
	}
	switch v := p.Variant.(type) {
	case GraphVariant:
		task1(Task1Graph, v.VisualDescription)
	case TableVariant:
		task1(Task1Table, v.VisualDescription)
	case ProcessVariant:
		task1(Task1Process, v.VisualDescription)
		if v.Stages > 0 {
			rec.Metadata["stages"] = v.Stages
		}
		if v.Flow != "" {
			rec.Metadata["flow"] = v.Flow
		}
		if len(v.Inputs) > 0 {
			rec.Metadata["inputs"] = v.Inputs
		}
		if v.Output != "" {
			rec.Metadata["output"] = v.Output
		}
	case MapVariant:
		task1(Task1Map, v.VisualDescription)
		if v.Years != [2]int{} {
			rec.Metadata["years"] = v.Years[:]
		}
		if len(v.KeyChanges) > 0 {
			rec.Metadata["key_changes"] = v.KeyChanges
		}
		if len(v.Retained) > 0 {
			rec.Metadata["retained"] = v.Retained
		}
	case Task2Variant:
		qt := v.QuestionType
		rec.Task = Task2
		rec.Task2QuestionType = &qt
	}
	return rec
}

// NormalizeTags slugifies topic tags and drops empties and duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		s := slug.Make(t)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// PromptFilter narrows catalog listings. Zero values mean no filtering.
type PromptFilter struct {
	Task              TaskType
	Task1Type         Task1Type
	Task2QuestionType Task2QuestionType
	Difficulty        int
}
