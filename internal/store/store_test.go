package store

import (
	"testing"
	"time"

	"github.com/pavelanni/papergen/internal/model"
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

func insertTestUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "Dr. " + username,
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestCourse(t *testing.T, s *Store, ownerID int64, code string) *model.Course {
	t.Helper()
	c, err := s.EnsureCourse(ownerID, code, "Course "+code, "5")
	if err != nil {
		t.Fatalf("insertTestCourse: %v", err)
	}
	return c
}

func testPool() model.CandidatePool {
	return model.CandidatePool{
		Questions: []model.CandidateQuestion{
			{ID: "q1", Text: "Define a process.", PredictedMarks: 5, BloomLevel: model.BloomL1, Difficulty: "Easy", MatchedTopic: "Processes", MatchedUnit: "Unit 1", TopicSimilarity: 0.9},
			{Text: "Explain paging.", PredictedMarks: 7, BloomLevel: model.BloomL3, Difficulty: "Medium", MatchedTopic: "Memory", MatchedUnit: "Unit 2", TopicSimilarity: 0.7},
		},
		Topics: []model.Topic{
			{Unit: "Unit 1", TopicID: "1.1", TopicName: "Processes"},
			{Unit: "Unit 2", TopicID: "2.1", TopicName: "Memory"},
		},
	}
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
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

	id := insertTestUser(t, s, "alice")
	u, err := s.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Role != model.UserRoleEducator {
		t.Errorf("expected default role educator, got %q", u.Role)
	}
	if !u.Active {
		t.Error("expected user to be active")
	}

	missing, err := s.GetUserByUsername("nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown user, got %+v", missing)
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, err = s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.Active {
		t.Error("expected user to be inactive after toggle")
	}

	if _, err := s.CreateUser(model.User{Username: "alice", PasswordHash: "x"}); err == nil {
		t.Error("expected error for duplicate username")
	}

	insertTestUser(t, s, "bob")
	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	uid := insertTestUser(t, s, "alice")

	token, err := s.CreateAuthSession(uid)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != uid {
		t.Fatalf("expected session for user %d, got %+v", uid, sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess != nil {
		t.Error("expected nil session after delete")
	}

	// Expired sessions are not returned.
	_, err = s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"expired", uid, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour),
	)
	if err != nil {
		t.Fatalf("insert expired session: %v", err)
	}
	sess, err = s.GetAuthSession("expired")
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}
}

func TestCourses(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice")
	bob := insertTestUser(t, s, "bob")

	c := insertTestCourse(t, s, alice, " cs501 ")
	if c.Code != "CS501" {
		t.Errorf("expected normalized code CS501, got %q", c.Code)
	}

	again := insertTestCourse(t, s, alice, "CS501")
	if again.ID != c.ID {
		t.Errorf("expected EnsureCourse to return existing course %d, got %d", c.ID, again.ID)
	}

	// Same code for another educator is a different course.
	other := insertTestCourse(t, s, bob, "CS501")
	if other.ID == c.ID {
		t.Error("expected separate course per owner")
	}

	if _, err := s.CreateCourse(model.Course{OwnerID: alice, Code: "cs501"}); err == nil {
		t.Error("expected error for duplicate course code")
	}

	insertTestCourse(t, s, alice, "CS301")
	courses, err := s.ListCourses(alice)
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(courses))
	}
	if courses[0].Code != "CS301" {
		t.Errorf("expected courses ordered by code, got %q first", courses[0].Code)
	}

	missing, err := s.GetCourse(alice, "XX999")
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown course, got %+v", missing)
	}
}

func TestBankVersions(t *testing.T) {
	s := newTestStore(t)
	uid := insertTestUser(t, s, "alice")
	c := insertTestCourse(t, s, uid, "CS501")

	bv, pool, err := s.LatestBank(c.ID)
	if err != nil {
		t.Fatalf("LatestBank: %v", err)
	}
	if bv != nil {
		t.Errorf("expected no bank version, got %+v", bv)
	}
	if len(pool.Questions) != 0 {
		t.Errorf("expected empty pool, got %d questions", len(pool.Questions))
	}

	first, err := s.SaveBankVersion(c.ID, testPool(), "bank.json")
	if err != nil {
		t.Fatalf("SaveBankVersion: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("expected version 1, got %d", first.Version)
	}

	bv, pool, err = s.LatestBank(c.ID)
	if err != nil {
		t.Fatalf("LatestBank: %v", err)
	}
	if bv == nil || bv.ID != first.ID {
		t.Fatalf("expected latest bank %s, got %+v", first.ID, bv)
	}
	if len(pool.Questions) != 2 || len(pool.Topics) != 2 {
		t.Fatalf("expected 2 questions and 2 topics, got %d and %d", len(pool.Questions), len(pool.Topics))
	}
	q := pool.Questions[0]
	if q.ID != "q1" || q.PredictedMarks != 5 || q.Difficulty != "Easy" || q.TopicSimilarity != 0.9 {
		t.Errorf("unexpected first question: %+v", q)
	}
	if pool.Questions[1].ID != "v1-q2" {
		t.Errorf("expected generated id v1-q2, got %q", pool.Questions[1].ID)
	}

	smaller := model.CandidatePool{Questions: testPool().Questions[:1]}
	second, err := s.SaveBankVersion(c.ID, smaller, "bank-v2.json")
	if err != nil {
		t.Fatalf("SaveBankVersion: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Version)
	}
	bv, pool, err = s.LatestBank(c.ID)
	if err != nil {
		t.Fatalf("LatestBank: %v", err)
	}
	if bv.ID != second.ID || len(pool.Questions) != 1 {
		t.Errorf("expected latest version 2 with 1 question, got %+v with %d", bv, len(pool.Questions))
	}

	versions, err := s.ListBankVersions(c.ID)
	if err != nil {
		t.Fatalf("ListBankVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 {
		t.Errorf("expected 2 versions newest first, got %+v", versions)
	}
}

func TestProcessingJobs(t *testing.T) {
	s := newTestStore(t)
	uid := insertTestUser(t, s, "alice")
	c := insertTestCourse(t, s, uid, "CS501")

	job, err := s.CreateJob(c.ID, "bank.pdf", "syllabus.pdf")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != model.JobPending {
		t.Errorf("expected pending, got %q", job.Status)
	}

	if err := s.UpdateJob(job.ID, "ext-1", model.JobFailed, "parse error"); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	got, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ExternalID != "ext-1" || got.Status != model.JobFailed || got.Message != "parse error" {
		t.Errorf("unexpected job after update: %+v", got)
	}

	missing, err := s.GetJob("nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown job, got %+v", missing)
	}
}

func TestPapers(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice")
	bob := insertTestUser(t, s, "bob")
	c := insertTestCourse(t, s, alice, "CS501")
	cb := insertTestCourse(t, s, bob, "CS301")

	assigned := []model.AssignedQuestion{
		{SlotID: "1a", MarksTarget: 5, DifficultyTarget: model.DifficultyEasy, Source: model.SourceBank, Text: "Define a process.", BloomLevel: model.BloomL1, Similarity: 0.9},
		{SlotID: "1b", MarksTarget: 5, DifficultyTarget: model.DifficultyMedium, Source: model.SourceGenerated, Text: "Explain paging.", BloomLevel: model.BloomL3},
	}
	stats := model.PaperStats{Total: 2, FromBank: 1, Generated: 1}

	id1, err := s.SavePaper(model.PaperRecord{
		CourseID: c.ID, OwnerID: alice, ExamType: model.ExamCIE, Semester: "5",
		Assigned: assigned, RenderedText: "paper one", Stats: stats,
	})
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}
	id2, err := s.SavePaper(model.PaperRecord{
		CourseID: c.ID, OwnerID: alice, ExamType: model.ExamSEE, Semester: "5",
		Assigned: assigned[:1], RenderedText: "paper two", Stats: stats,
	})
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}
	if _, err := s.SavePaper(model.PaperRecord{
		CourseID: cb.ID, OwnerID: bob, ExamType: model.ExamCIE, Assigned: assigned, RenderedText: "bob",
	}); err != nil {
		t.Fatalf("SavePaper: %v", err)
	}

	p, err := s.GetPaper(id1)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if p.CourseCode != "CS501" {
		t.Errorf("expected course code CS501, got %q", p.CourseCode)
	}
	if len(p.Assigned) != 2 || p.Assigned[1].Source != model.SourceGenerated {
		t.Errorf("unexpected assigned questions: %+v", p.Assigned)
	}
	if p.Stats.FromBank != 1 || p.RenderedText != "paper one" {
		t.Errorf("unexpected stats or text: %+v %q", p.Stats, p.RenderedText)
	}

	list, err := s.ListPapers(alice)
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 papers for alice, got %d", len(list))
	}
	if list[0].ID != id2 {
		t.Errorf("expected newest paper first, got %s", list[0].ID)
	}

	missing, err := s.GetPaper("nope")
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown paper, got %+v", missing)
	}
}

func TestExportAllPapers(t *testing.T) {
	s := newTestStore(t)
	uid := insertTestUser(t, s, "alice")
	c := insertTestCourse(t, s, uid, "CS501")

	_, err := s.SavePaper(model.PaperRecord{
		CourseID: c.ID, OwnerID: uid, ExamType: model.ExamCIE, Semester: "5",
		Assigned: []model.AssignedQuestion{
			{SlotID: "1a", MarksTarget: 5, DifficultyTarget: model.DifficultyEasy, TopicFilter: "Processes", Source: model.SourceBank, Text: "Define a process."},
		},
		RenderedText: "rendered",
	})
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}

	results, err := s.ExportAllPapers()
	if err != nil {
		t.Fatalf("ExportAllPapers: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Educator != "Dr. alice" {
		t.Errorf("expected educator 'Dr. alice', got %q", r.Educator)
	}
	if len(r.Questions) != 1 || r.Questions[0].Topic != "Processes" || r.Questions[0].Marks != 5 {
		t.Errorf("unexpected questions: %+v", r.Questions)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("bank.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("bank.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash("bank.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("bank.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "def" {
		t.Errorf("expected hash def, got %q", hash)
	}
}
