// Package band computes progress figures and coaching recommendations from a
// student's submission history.
package band

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pavelanni/bandcoach/internal/model"
)

// DefaultRecentWindow is how many scored submissions the recent band averages.
const DefaultRecentWindow = 5

// weakWindow is how many of the latest submissions feed weak-criteria detection.
const weakWindow = 3

// newestFirst returns a copy of subs ordered by CreatedAt descending. Equal
// timestamps keep their input order.
func newestFirst(subs []model.Submission) []model.Submission {
	out := slices.Clone(subs)
	slices.SortStableFunc(out, func(a, b model.Submission) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// RoundHalf rounds to the nearest 0.5.
func RoundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// ComputeRecentBand averages the overall band of the n most recent scored
// submissions, rounded to the nearest half band. ok is false when no submission
// carries an overall band.
func ComputeRecentBand(subs []model.Submission, n int) (band float64, ok bool) {
	var scored []model.Submission
	for _, s := range subs {
		if s.OverallBand != nil {
			scored = append(scored, s)
		}
	}
	if len(scored) == 0 || n <= 0 {
		return 0, false
	}
	scored = newestFirst(scored)
	if len(scored) > n {
		scored = scored[:n]
	}

	var sum float64
	for _, s := range scored {
		sum += *s.OverallBand
	}
	return RoundHalf(sum / float64(len(scored))), true
}

// Difficulty is the practice tier suggested for a student.
type Difficulty string

const (
	DifficultyFoundation   Difficulty = "foundation"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// RecommendedTask is the task a student should practise next.
type RecommendedTask string

const (
	RecommendTask1 RecommendedTask = "task1"
	RecommendTask2 RecommendedTask = "task2"
	RecommendBoth  RecommendedTask = "both"
)

// Personalisation is the coaching recommendation shown on the dashboard.
type Personalisation struct {
	EffectiveBand    float64           `json:"effectiveBand"`
	BandGap          float64           `json:"bandGap"`
	RecommendedTask  RecommendedTask   `json:"recommendedTask"`
	EmphasisCriteria []model.Criterion `json:"emphasisCriteria"`
	Difficulty       Difficulty        `json:"difficulty"`
	CoachingNote     string            `json:"coachingNote"`
}

// Coaching note message IDs. They double as i18n message IDs.
const (
	NoteGoalReached = "CoachGoalReached"
	NoteNearTarget  = "CoachNearTarget"
	NoteGap         = "CoachGap"
	NoteAnd         = "ListAnd"
)

// Translator renders a message ID with template data. The data keys used are
// "Gap" and "Weak".
type Translator func(msgID string, data map[string]any) string

var criterionNames = map[model.Criterion]string{
	model.CriterionTR:  "Task Response",
	model.CriterionCC:  "Coherence & Cohesion",
	model.CriterionLR:  "Lexical Resource",
	model.CriterionGRA: "Grammatical Range",
}

// CriterionName returns the full English name of c.
func CriterionName(c model.Criterion) string {
	return criterionNames[c]
}

// CriterionMessageID returns the i18n message ID for the name of c.
func CriterionMessageID(c model.Criterion) string {
	return "Criterion" + string(c)
}

func englishNote(msgID string, data map[string]any) string {
	switch msgID {
	case NoteGoalReached:
		return "You have reached your target band. Consider setting a new goal."
	case NoteNearTarget:
		return fmt.Sprintf("You are very close to your target. Focus on %v for the final push.", data["Weak"])
	case NoteGap:
		return fmt.Sprintf("%v bands to your target. Prioritise %v.", data["Gap"], data["Weak"])
	case NoteAnd:
		return "and"
	}
	if strings.HasPrefix(msgID, "Criterion") {
		return CriterionName(model.Criterion(strings.TrimPrefix(msgID, "Criterion")))
	}
	return msgID
}

// BuildPersonalisation derives the coaching recommendation for a profile from
// its submission history. A nil tr renders English text.
func BuildPersonalisation(profile model.User, subs []model.Submission, tr Translator) Personalisation {
	if tr == nil {
		tr = englishNote
	}

	effective, ok := ComputeRecentBand(subs, DefaultRecentWindow)
	if !ok {
		effective = profile.CurrentBand
	}
	gap := profile.TargetBand - effective

	p := Personalisation{
		EffectiveBand:    effective,
		BandGap:          gap,
		Difficulty:       difficultyFor(effective),
		EmphasisCriteria: weakestCriteria(subs),
		RecommendedTask:  recommendTask(subs),
	}

	names := make([]string, len(p.EmphasisCriteria))
	for i, c := range p.EmphasisCriteria {
		names[i] = tr(CriterionMessageID(c), nil)
	}
	weak := strings.Join(names, " "+tr(NoteAnd, nil)+" ")

	switch {
	case gap <= 0:
		p.CoachingNote = tr(NoteGoalReached, nil)
	case gap <= 0.5:
		p.CoachingNote = tr(NoteNearTarget, map[string]any{"Weak": weak})
	default:
		p.CoachingNote = tr(NoteGap, map[string]any{"Gap": fmt.Sprintf("%.1f", gap), "Weak": weak})
	}
	return p
}

func difficultyFor(b float64) Difficulty {
	switch {
	case b < 5.5:
		return DifficultyFoundation
	case b < 7.0:
		return DifficultyIntermediate
	default:
		return DifficultyAdvanced
	}
}

// weakestCriteria returns the two criteria with the lowest mean band over the
// latest submissions, weakest first. Ties keep TR, CC, LR, GRA order.
func weakestCriteria(subs []model.Submission) []model.Criterion {
	recent := newestFirst(subs)
	if len(recent) > weakWindow {
		recent = recent[:weakWindow]
	}

	type avg struct {
		c   model.Criterion
		avg float64
	}
	avgs := make([]avg, len(model.Criteria))
	for i, c := range model.Criteria {
		avgs[i].c = c
		if len(recent) == 0 {
			continue
		}
		var sum float64
		for _, s := range recent {
			if s.CriteriaScores != nil {
				sum += s.CriteriaScores.Get(c)
			}
		}
		avgs[i].avg = sum / float64(len(recent))
	}
	slices.SortStableFunc(avgs, func(a, b avg) int {
		switch {
		case a.avg < b.avg:
			return -1
		case a.avg > b.avg:
			return 1
		}
		return 0
	})
	return []model.Criterion{avgs[0].c, avgs[1].c}
}

func recommendTask(subs []model.Submission) RecommendedTask {
	ratio := 0.5
	if len(subs) > 0 {
		task2 := 0
		for _, s := range subs {
			if s.TaskType == model.Task2 {
				task2++
			}
		}
		ratio = float64(task2) / float64(len(subs))
	}
	switch {
	case ratio < 0.3:
		return RecommendTask2
	case ratio > 0.7:
		return RecommendTask1
	default:
		return RecommendBoth
	}
}

// ProgressPercent is how far the effective band is toward the target, capped at 100.
func ProgressPercent(effective, target float64) float64 {
	return math.Min(effective/math.Max(target, 0.1)*100, 100)
}
