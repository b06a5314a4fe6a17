package store

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pavelanni/bandcoach/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func createTestUser(t *testing.T, s *Store, email string, role model.UserRole) *model.User {
	t.Helper()
	u, err := s.CreateUser(model.User{
		Email:        email,
		FullName:     "Test " + email,
		PasswordHash: "hash",
		CurrentBand:  5.5,
		TargetBand:   7.0,
		Role:         role,
		Onboarded:    true,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return u
}

func task2Prompt(text string, created time.Time) model.WritingPrompt {
	return model.WritingPrompt{
		PromptText: text,
		Difficulty: 2,
		TopicTags:  []string{"education"},
		CreatedAt:  created,
		Variant:    model.Task2Variant{QuestionType: model.AgreeDisagree},
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	u := createTestUser(t, s, "lan@example.com", model.UserRoleStudent)
	if u.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetUserByEmail("LAN@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.CurrentBand != 5.5 || !got.Active || got.Age != nil {
		t.Errorf("unexpected user: %+v", got)
	}

	_, err = s.CreateUser(model.User{Email: "Lan@Example.com", PasswordHash: "x", Role: model.UserRoleStudent})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate email, got %v", err)
	}

	_, err = s.GetUserByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got.FullName = "Nguyen Lan"
	got.Age = ptr(19)
	got.Phone = ptr("0901")
	got.TargetBand = 7.5
	if err := s.UpdateUser(got); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	again, err := s.GetUserByID(u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if again.FullName != "Nguyen Lan" || again.Age == nil || *again.Age != 19 || *again.Phone != "0901" || again.TargetBand != 7.5 {
		t.Errorf("update not persisted: %+v", again)
	}

	if err := s.SetCurrentBand(u.ID, 6.5); err != nil {
		t.Fatalf("SetCurrentBand: %v", err)
	}
	if err := s.ToggleUserActive(u.ID); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	again, _ = s.GetUserByID(u.ID)
	if again.CurrentBand != 6.5 || again.Active {
		t.Errorf("expected band 6.5 and inactive, got %v/%v", again.CurrentBand, again.Active)
	}
	if err := s.ToggleUserActive("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListStudents(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "a@example.com", model.UserRoleStudent)
	createTestUser(t, s, "t@example.com", model.UserRoleTeacher)
	createTestUser(t, s, "b@example.com", model.UserRoleStudent)

	all, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}
	students, err := s.ListStudents()
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %d", len(students))
	}
	for _, st := range students {
		if st.Role != model.UserRoleStudent {
			t.Errorf("unexpected role %q", st.Role)
		}
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	u := createTestUser(t, s, "s@example.com", model.UserRoleStudent)

	token, err := s.CreateAuthSession(u.ID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil {
		t.Fatalf("GetAuthSession: %v %v", sess, err)
	}
	if sess.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", sess.UserID, u.ID)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil || sess != nil {
		t.Errorf("expected no session after delete, got %v %v", sess, err)
	}

	// An expired row is dropped on read.
	past := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := s.db.Exec(`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"old", u.ID, past, past.Add(time.Hour)); err != nil {
		t.Fatalf("insert expired: %v", err)
	}
	sess, err = s.GetAuthSession("old")
	if err != nil || sess != nil {
		t.Errorf("expected expired session to be ignored, got %v %v", sess, err)
	}
	n, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 0 {
		t.Errorf("expired session should already be gone, removed %d", n)
	}
}

func TestPromptRoundTrip(t *testing.T) {
	s := newTestStore(t)

	variants := []model.Variant{
		model.GraphVariant{VisualDescription: "Line graph of rainfall"},
		model.TableVariant{VisualDescription: "Table of exports"},
		model.ProcessVariant{VisualDescription: "Tea production", Stages: 5, Flow: model.FlowLinear, Inputs: []string{"leaves"}, Output: "tea"},
		model.MapVariant{VisualDescription: "Village", Years: [2]int{1990, 2020}, KeyChanges: []string{"road"}, Retained: []string{"church"}},
		model.Task2Variant{QuestionType: model.ProblemSolution},
	}

	for _, v := range variants {
		in := model.WritingPrompt{PromptText: "Describe it.", Difficulty: 1, TopicTags: []string{"Climate Change"}, Variant: v}
		in.TopicTags = model.NormalizeTags(in.TopicTags)
		stored, err := s.InsertPrompts([]model.WritingPrompt{in})
		if err != nil {
			t.Fatalf("InsertPrompts(%T): %v", v, err)
		}
		got, err := s.GetPrompt(stored[0].ID)
		if err != nil {
			t.Fatalf("GetPrompt(%T): %v", v, err)
		}
		if !reflect.DeepEqual(got.Variant, v) {
			t.Errorf("variant = %#v, want %#v", got.Variant, v)
		}
		if !reflect.DeepEqual(got.TopicTags, []string{"climate-change"}) {
			t.Errorf("tags = %v", got.TopicTags)
		}
	}

	if _, err := s.GetPrompt("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPromptTaskExclusivity(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(
		`INSERT INTO writing_prompts (id, task, task1_type, task2_question_type, prompt_text, difficulty, created_at)
		 VALUES ('bad', 'task1', 'graph', 'agree_disagree', 'x', 1, ?)`, time.Now().UTC())
	if err == nil {
		t.Fatal("expected the schema to reject a task1 row with a task2 question type")
	}
}

func TestListPrompts(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var batch []model.WritingPrompt
	for i := 0; i < 12; i++ {
		batch = append(batch, task2Prompt("essay question", base.Add(time.Duration(i)*time.Hour)))
	}
	batch = append(batch, model.WritingPrompt{
		PromptText: "The chart shows...", Difficulty: 3, CreatedAt: base.Add(-time.Hour),
		Variant: model.GraphVariant{VisualDescription: "Bar chart"},
	})
	stored, err := s.InsertPrompts(batch)
	if err != nil {
		t.Fatalf("InsertPrompts: %v", err)
	}
	if len(stored) != 13 {
		t.Fatalf("expected 13 stored, got %d", len(stored))
	}

	tests := []struct {
		name      string
		filter    model.PromptFilter
		limit     int
		offset    int
		wantLen   int
		wantTotal int
	}{
		{"first page", model.PromptFilter{}, 10, 0, 10, 13},
		{"second page", model.PromptFilter{}, 10, 10, 3, 13},
		{"task2 only", model.PromptFilter{Task: model.Task2}, 10, 0, 10, 12},
		{"task1 graph", model.PromptFilter{Task: model.Task1, Task1Type: model.Task1Graph}, 10, 0, 1, 1},
		{"difficulty", model.PromptFilter{Difficulty: 3}, 10, 0, 1, 1},
		{"question type miss", model.PromptFilter{Task2QuestionType: model.TwoDirectQuestions}, 10, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.ListPrompts(tt.filter, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListPrompts: %v", err)
			}
			if len(got) != tt.wantLen || total != tt.wantTotal {
				t.Errorf("got %d/%d, want %d/%d", len(got), total, tt.wantLen, tt.wantTotal)
			}
		})
	}

	page, _, _ := s.ListPrompts(model.PromptFilter{}, 2, 0)
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Error("admin listing should be newest first")
	}

	practice, err := s.ListPracticePrompts(model.Task2)
	if err != nil {
		t.Fatalf("ListPracticePrompts: %v", err)
	}
	if len(practice) != 12 || !practice[0].CreatedAt.Equal(base) {
		t.Errorf("practice list should be oldest first, got %d starting %v", len(practice), practice[0].CreatedAt)
	}

	samples, err := s.SamplePrompts(model.PromptFilter{Task: model.Task2}, 10)
	if err != nil {
		t.Fatalf("SamplePrompts: %v", err)
	}
	if len(samples) != 10 || samples[0].Task != model.Task2 {
		t.Errorf("unexpected samples: %d", len(samples))
	}

	if err := s.DeletePrompt(stored[0].ID); err != nil {
		t.Fatalf("DeletePrompt: %v", err)
	}
	if err := s.DeletePrompt(stored[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if n, _ := s.PromptCount(); n != 12 {
		t.Errorf("PromptCount = %d, want 12", n)
	}
}

func TestInsertPromptsAtomic(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	a := task2Prompt("first", now)
	a.ID = "dup"
	b := task2Prompt("second", now)
	b.ID = "dup"

	_, err := s.InsertPrompts([]model.WritingPrompt{a, b})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if n, _ := s.PromptCount(); n != 0 {
		t.Errorf("failed batch should store nothing, found %d", n)
	}
}

func TestSubmissions(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "alice@example.com", model.UserRoleStudent)
	bob := createTestUser(t, s, "bob@example.com", model.UserRoleStudent)
	ps, err := s.InsertPrompts([]model.WritingPrompt{task2Prompt("Some people think...", time.Time{})})
	if err != nil {
		t.Fatalf("InsertPrompts: %v", err)
	}
	p := ps[0]

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i, band := range []float64{6.0, 6.5, 7.0} {
		sub, err := s.InsertSubmission(model.Submission{
			StudentID:      alice.ID,
			PromptID:       &p.ID,
			TaskType:       model.Task2,
			EssayText:      "essay",
			WordCount:      ptr(260),
			OverallBand:    ptr(band),
			CriteriaScores: &model.CriteriaScores{TR: band, CC: band, LR: band, GRA: band},
			Feedback:       json.RawMessage(`{"overallBand":6}`),
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("InsertSubmission: %v", err)
		}
		ids = append(ids, sub.ID)
	}

	list, err := s.ListSubmissions(alice.ID, 0)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(list))
	}
	if list[0].ID != ids[2] || *list[0].OverallBand != 7.0 {
		t.Errorf("expected newest first, got %s", list[0].ID)
	}
	if list[0].Feedback != nil {
		t.Error("listing should not carry the feedback document")
	}
	if list[0].CriteriaScores == nil || list[0].CriteriaScores.GRA != 7.0 {
		t.Errorf("criteria not restored: %+v", list[0].CriteriaScores)
	}

	limited, _ := s.ListSubmissions(alice.ID, 2)
	if len(limited) != 2 {
		t.Errorf("limit ignored: %d", len(limited))
	}

	got, err := s.GetSubmission(ids[0], alice.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if string(got.Feedback) != `{"overallBand":6}` {
		t.Errorf("feedback = %s", got.Feedback)
	}
	if _, err := s.GetSubmission(ids[0], bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("other student's submission should be not found, got %v", err)
	}

	// Deleting the prompt keeps the submission and clears the link.
	if err := s.DeletePrompt(p.ID); err != nil {
		t.Fatalf("DeletePrompt: %v", err)
	}
	got, _ = s.GetSubmission(ids[0], alice.ID)
	if got.PromptID != nil {
		t.Errorf("prompt link should be cleared, got %v", *got.PromptID)
	}

	rows, err := s.ExportSubmissions()
	if err != nil {
		t.Fatalf("ExportSubmissions: %v", err)
	}
	if len(rows) != 3 || rows[0].StudentEmail != "alice@example.com" || rows[0].Criteria.TR != 6.0 {
		t.Errorf("unexpected export: %+v", rows)
	}
	if n, _ := s.SubmissionCount(bob.ID); n != 0 {
		t.Errorf("bob should have no submissions, got %d", n)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("seed.json")
	if err != nil || hash != "" {
		t.Fatalf("expected empty hash, got %q %v", hash, err)
	}
	if err := s.SetImportedFileHash("seed.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash("seed.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("seed.json")
	if hash != "def" {
		t.Errorf("hash = %q, want def", hash)
	}
	ok, err := s.HasImportedHash("def")
	if err != nil || !ok {
		t.Errorf("HasImportedHash(def) = %v %v", ok, err)
	}
	ok, _ = s.HasImportedHash("abc")
	if ok {
		t.Error("replaced hash should not be reported")
	}
}
