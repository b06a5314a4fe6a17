package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/bandcoach/internal/model"
	"github.com/pavelanni/bandcoach/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestLoadQuestionsShippedSeed(t *testing.T) {
	s := newTestStore(t)
	if err := loadQuestions(s, []string{"../../questions/ielts_prompts.json"}); err != nil {
		t.Fatalf("loadQuestions: %v", err)
	}
	n, err := s.PromptCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Errorf("PromptCount = %d, want 9", n)
	}
}

func TestLoadQuestionsOnce(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[{"task": "task2", "task2_question_type": "agree_disagree", "difficulty": 1, "prompt_text": "Do you agree?"}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := loadQuestions(s, []string{path}); err != nil {
			t.Fatalf("loadQuestions: %v", err)
		}
	}
	if n, _ := s.PromptCount(); n != 1 {
		t.Errorf("PromptCount after reload = %d, want 1", n)
	}

	// A changed file is not re-imported.
	changed := `[{"task": "task2", "task2_question_type": "agree_disagree", "difficulty": 1, "prompt_text": "Changed?"}]`
	if err := os.WriteFile(path, []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadQuestions(s, []string{path}); err != nil {
		t.Fatalf("loadQuestions: %v", err)
	}
	if n, _ := s.PromptCount(); n != 1 {
		t.Errorf("PromptCount after change = %d, want 1", n)
	}

	// Missing files are skipped.
	if err := loadQuestions(s, []string{filepath.Join(t.TempDir(), "missing.json")}); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestLoadQuestionsRejectsInvalidPrompt(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	seed := `[{"task": "task1", "task1_type": "graph", "difficulty": 1, "prompt_text": "No visual description."}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadQuestions(s, []string{path}); err == nil {
		t.Fatal("expected error for task1 prompt without visual description")
	}
	if hash, _ := s.GetImportedFileHash(path); hash != "" {
		t.Error("failed import was recorded")
	}
}

func TestSeedAdmin(t *testing.T) {
	s := newTestStore(t)
	if err := seedAdmin(s, "Admin@Example.com", ""); err == nil {
		t.Fatal("expected error without password")
	}
	if err := seedAdmin(s, "Admin@Example.com", "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	u, err := s.GetUserByEmail("admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != model.UserRoleAdmin || !u.Active {
		t.Errorf("admin = %+v", u)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")) != nil {
		t.Error("password hash does not match")
	}

	// Second call is a no-op once users exist.
	if err := seedAdmin(s, "other@example.com", ""); err != nil {
		t.Errorf("second seedAdmin: %v", err)
	}
	if n, _ := s.UserCount(); n != 1 {
		t.Errorf("UserCount = %d, want 1", n)
	}
}

func TestSyncBands(t *testing.T) {
	s := newTestStore(t)
	mk := func(email string, current float64) *model.User {
		u, err := s.CreateUser(model.User{
			Email: email, FullName: email, PasswordHash: "x",
			CurrentBand: current, TargetBand: 8, Role: model.UserRoleStudent, Active: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		return u
	}
	withHistory := mk("a@example.com", 5.0)
	noHistory := mk("b@example.com", 5.5)
	unchanged := mk("c@example.com", 6.0)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(u *model.User, bands ...float64) {
		for i, b := range bands {
			if _, err := s.InsertSubmission(model.Submission{
				StudentID: u.ID, TaskType: model.Task2, EssayText: "essay",
				OverallBand: ptr(b), CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	add(withHistory, 6.0, 6.5, 7.0, 6.5, 7.0)
	add(unchanged, 6.0)

	n, err := syncBands(s, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("dry run updated = %d, want 1", n)
	}
	if u, _ := s.GetUserByID(withHistory.ID); u.CurrentBand != 5.0 {
		t.Errorf("dry run wrote band %v", u.CurrentBand)
	}

	if _, err := syncBands(s, 5, false); err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{withHistory.ID: 6.5, noHistory.ID: 5.5, unchanged.ID: 6.0}
	for id, b := range want {
		u, err := s.GetUserByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if u.CurrentBand != b {
			t.Errorf("%s: CurrentBand = %v, want %v", u.Email, u.CurrentBand, b)
		}
	}
}

func testExportRows() []model.SubmissionExport {
	return []model.SubmissionExport{
		{
			SubmissionID: "sub-1", StudentEmail: "a@example.com", StudentName: "A",
			TaskType: model.Task2, WordCount: ptr(265), OverallBand: ptr(6.5),
			Criteria:  &model.CriteriaScores{TR: 6.5, CC: 6, LR: 7, GRA: 6.5},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			SubmissionID: "sub-2", StudentEmail: "b@example.com", StudentName: "B",
			TaskType: model.Task1, CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if err := writeJSON(&buf, testExportRows(), now); err != nil {
		t.Fatal(err)
	}
	var got model.SubmissionsExport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || len(got.Results) != 2 || !got.GeneratedAt.Equal(now) {
		t.Errorf("export = %+v", got)
	}

	buf.Reset()
	if err := writeJSON(&buf, nil, now); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"results": []`)) {
		t.Errorf("empty export = %s", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := writeXLSX(&buf, testExportRows()); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Submission ID" || rows[0][6] != "TR" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "sub-1" || rows[1][4] != "265" || rows[1][5] != "6.5" || rows[1][8] != "7" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "sub-2" || rows[2][3] != "task1" || rows[2][5] != "" {
		t.Errorf("row 2 = %v", rows[2])
	}
}
