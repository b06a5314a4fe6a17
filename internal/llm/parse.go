package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/bandcoach/internal/model"
)

// OutputError describes why an oracle reply was rejected. It matches
// ErrMalformedOutput with errors.Is.
type OutputError struct {
	Reason  string
	Wrapped error
}

func (e *OutputError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedOutput, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedOutput, e.Reason)
}

func (e *OutputError) Unwrap() error { return e.Wrapped }

func (e *OutputError) Is(target error) bool { return target == ErrMalformedOutput }

var fenceRegex = regexp.MustCompile("```json\\n?|```")

// StripFence removes markdown code fences around a JSON reply.
func StripFence(s string) string {
	return strings.TrimSpace(fenceRegex.ReplaceAllString(s, ""))
}

type bandField struct {
	Band *float64 `json:"band"`
}

// requiredFields mirrors the mandatory parts of the feedback schema. Pointers
// tell a missing value from a zero band.
type requiredFields struct {
	OverallBand    *float64 `json:"overallBand"`
	CriteriaScores *struct {
		TR  *bandField `json:"TR"`
		CC  *bandField `json:"CC"`
		LR  *bandField `json:"LR"`
		GRA *bandField `json:"GRA"`
	} `json:"criteriaScores"`
}

// ParseFeedback turns a marking reply into validated feedback. It also returns
// the fence-stripped JSON so callers can store the verdict verbatim.
func ParseFeedback(raw string) (*model.ExaminerFeedback, []byte, error) {
	cleaned := []byte(StripFence(raw))
	if !json.Valid(cleaned) {
		return nil, nil, &OutputError{Reason: "reply is not JSON"}
	}

	var req requiredFields
	if err := json.Unmarshal(cleaned, &req); err != nil {
		return nil, nil, &OutputError{Reason: "unexpected feedback shape", Wrapped: err}
	}
	if err := checkBand("overallBand", req.OverallBand); err != nil {
		return nil, nil, err
	}
	if req.CriteriaScores == nil {
		return nil, nil, &OutputError{Reason: "criteriaScores missing"}
	}
	bands := map[model.Criterion]*bandField{
		model.CriterionTR:  req.CriteriaScores.TR,
		model.CriterionCC:  req.CriteriaScores.CC,
		model.CriterionLR:  req.CriteriaScores.LR,
		model.CriterionGRA: req.CriteriaScores.GRA,
	}
	for _, c := range model.Criteria {
		v := bands[c]
		if v == nil {
			return nil, nil, &OutputError{Reason: fmt.Sprintf("criteriaScores.%s missing", c)}
		}
		if err := checkBand("criteriaScores."+string(c)+".band", v.Band); err != nil {
			return nil, nil, err
		}
	}

	fb, err := decodeFeedback(cleaned, *req.OverallBand)
	if err != nil {
		return nil, nil, err
	}
	return &fb, cleaned, nil
}

// decodeFeedback reads the verdict field by field. Bands were checked by the
// caller; any other field whose shape is off is left at its zero value.
func decodeFeedback(cleaned []byte, overall float64) (model.ExaminerFeedback, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(cleaned, &fields); err != nil {
		return model.ExaminerFeedback{}, &OutputError{Reason: "unexpected feedback shape", Wrapped: err}
	}

	fb := model.ExaminerFeedback{OverallBand: overall}
	decodeLenient(fields["taskType"], &fb.TaskType)
	fb.WordCount = lenientInt(fields["wordCount"])
	decodeLenient(fields["wordCountNote"], &fb.WordCountNote)
	decodeLenient(fields["examinerSummary"], &fb.ExaminerSummary)
	decodeLenient(fields["taskSpecificFeedback"], &fb.TaskSpecificFeedback)
	decodeLenient(fields["priorityImprovements"], &fb.PriorityImprovements)
	decodeLenient(fields["modelParagraph"], &fb.ModelParagraph)
	decodeLenient(fields["originalParagraph"], &fb.OriginalParagraph)
	decodeLenient(fields["comparativeLevel"], &fb.ComparativeLevel)

	var vocab map[string]json.RawMessage
	decodeLenient(fields["vocabularyHighlights"], &vocab)
	decodeLenient(vocab["effective"], &fb.VocabularyHighlights.Effective)
	decodeLenient(vocab["problematic"], &fb.VocabularyHighlights.Problematic)

	var criteria map[string]json.RawMessage
	decodeLenient(fields["criteriaScores"], &criteria)
	fb.CriteriaScores.TR = decodeCriterion(criteria[string(model.CriterionTR)])
	fb.CriteriaScores.CC = decodeCriterion(criteria[string(model.CriterionCC)])
	fb.CriteriaScores.LR = decodeCriterion(criteria[string(model.CriterionLR)])
	fb.CriteriaScores.GRA = decodeCriterion(criteria[string(model.CriterionGRA)])

	var annotations []map[string]json.RawMessage
	decodeLenient(fields["errorAnnotations"], &annotations)
	if annotations != nil {
		fb.ErrorAnnotations = make([]model.ErrorAnnotation, 0, len(annotations))
	}
	for i, a := range annotations {
		var ann model.ErrorAnnotation
		decodeLenient(a["type"], &ann.Type)
		if !ann.Type.Valid() {
			return model.ExaminerFeedback{}, &OutputError{Reason: fmt.Sprintf("errorAnnotations[%d]: unknown type %q", i, ann.Type)}
		}
		decodeLenient(a["quote"], &ann.Quote)
		decodeLenient(a["issue"], &ann.Issue)
		decodeLenient(a["correction"], &ann.Correction)
		fb.ErrorAnnotations = append(fb.ErrorAnnotations, ann)
	}
	return fb, nil
}

func decodeCriterion(raw json.RawMessage) model.CriterionFeedback {
	var fields map[string]json.RawMessage
	decodeLenient(raw, &fields)
	var c model.CriterionFeedback
	decodeLenient(fields["band"], &c.Band)
	decodeLenient(fields["label"], &c.Label)
	decodeLenient(fields["feedback"], &c.Feedback)
	decodeLenient(fields["bandRationale"], &c.BandRationale)
	return c
}

// decodeLenient unmarshals raw into dst, leaving dst unchanged when raw is
// absent or has a different shape.
func decodeLenient[T any](raw json.RawMessage, dst *T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// lenientInt reads a whole number written as an integer, a float or a numeric
// string. Anything else reads as 0.
func lenientInt(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(math.Round(f))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(math.Round(f))
		}
	}
	return 0
}

func checkBand(field string, v *float64) error {
	if v == nil {
		return &OutputError{Reason: field + " missing"}
	}
	if *v < 0 || *v > 9 {
		return &OutputError{Reason: fmt.Sprintf("%s %v out of range", field, *v)}
	}
	return nil
}

// ParseCandidates reads generated questions from a reply that is either a bare
// array or an object with a "questions" array.
func ParseCandidates(raw string) ([]model.PromptRecord, error) {
	cleaned := []byte(StripFence(raw))
	if !json.Valid(cleaned) {
		return nil, &OutputError{Reason: "reply is not JSON"}
	}

	list := cleaned
	if bytes.HasPrefix(cleaned, []byte("{")) {
		var wrapper struct {
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(cleaned, &wrapper); err != nil {
			return nil, &OutputError{Reason: "unexpected reply shape", Wrapped: err}
		}
		if len(wrapper.Questions) > 0 && !bytes.Equal(wrapper.Questions, []byte("null")) {
			list = wrapper.Questions
		}
	}
	if !bytes.HasPrefix(bytes.TrimSpace(list), []byte("[")) {
		return nil, &OutputError{Reason: "expected an array of questions"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, &OutputError{Reason: "expected an array of questions", Wrapped: err}
	}
	out := make([]model.PromptRecord, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, &OutputError{Reason: fmt.Sprintf("question %d is not an object", i), Wrapped: err}
		}
		out = append(out, decodeCandidate(fields))
	}
	return out, nil
}

// decodeCandidate reads one generated question field by field. Candidates are
// reviewed before saving, so a mistyped field is zeroed rather than fatal.
func decodeCandidate(fields map[string]json.RawMessage) model.PromptRecord {
	var rec model.PromptRecord
	decodeLenient(fields["task"], &rec.Task)
	decodeLenient(fields["task1_type"], &rec.Task1Type)
	decodeLenient(fields["task2_question_type"], &rec.Task2QuestionType)
	decodeLenient(fields["prompt_text"], &rec.PromptText)
	rec.Difficulty = lenientInt(fields["difficulty"])
	decodeLenient(fields["topic_tags"], &rec.TopicTags)
	decodeLenient(fields["image_url"], &rec.ImageURL)
	decodeLenient(fields["visual_description"], &rec.VisualDescription)
	decodeLenient(fields["metadata"], &rec.Metadata)
	return rec
}
