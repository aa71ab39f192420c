package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/scoring"
	"nbl_training_backend/internal/util"
)

type memSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]model.TrainingSession
	nextID    uint
	updateErr error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]model.TrainingSession)}
}

func (m *memSessionStore) Create(ctx context.Context, s *model.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.sessions[s.SessionID] = *s
	return nil
}

func (m *memSessionStore) Update(ctx context.Context, s *model.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.sessions[s.SessionID] = *s
	return nil
}

func (m *memSessionStore) FindBySessionID(ctx context.Context, id string) (*model.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessionStore) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TrainingSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]model.User)}
}

func (m *memUserStore) FirstOrCreate(ctx context.Context, u *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.UserID]; ok {
		return &existing, nil
	}
	m.users[u.UserID] = *u
	stored := *u
	return &stored, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      *TrainingService
	sessions *memSessionStore
	users    *memUserStore
	clock    *fakeClock
}

func newFixture() *fixture {
	f := &fixture{
		sessions: newMemSessionStore(),
		users:    newMemUserStore(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = NewTrainingService(f.sessions, f.users, scoring.DefaultParams())
	f.svc.now = f.clock.Now
	return f
}

func (f *fixture) start(t *testing.T) string {
	t.Helper()
	res, err := f.svc.Start(context.Background(), "trainee-01", nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return res.SessionID
}

func ptr[T any](v T) *T { return &v }

func TestStartCreatesSessionWithDefaults(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Start(context.Background(), "trainee-01", nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(res.SessionID, "nbl_") || len(res.SessionID) < util.MinSessionIDLength {
		t.Errorf("SessionID = %q", res.SessionID)
	}
	if res.PhaseData.CurrentPhase != 1 || res.PhaseData.Scores != [4]int{} {
		t.Errorf("PhaseData = %+v", res.PhaseData)
	}
	want := model.UserData{Weight: 70, Height: 175, ExperienceLevel: model.Beginner}
	if res.UserData != want {
		t.Errorf("UserData = %+v, want %+v", res.UserData, want)
	}
	if u := f.users.users["trainee-01"]; u.Username != "User_trainee-01" {
		t.Errorf("Username = %q", u.Username)
	}

	s, err := f.svc.GetSession(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if s.Status != model.SessionActive || s.TrainingType != model.TrainingNBL || s.Grade != "F" {
		t.Errorf("session = %+v", s)
	}
	if !s.StartTime.Equal(f.clock.Now()) {
		t.Errorf("StartTime = %v", s.StartTime)
	}
}

func TestStartKeepsExistingProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	profile := &model.TrainingProfile{UserWeight: 82, UserHeight: 181, ExperienceLevel: model.Advanced}
	if _, err := f.svc.Start(ctx, "trainee-01", profile); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Start(ctx, "trainee-01", &model.TrainingProfile{UserWeight: 60, UserHeight: 160, ExperienceLevel: model.Beginner})
	if err != nil {
		t.Fatal(err)
	}
	if res.UserData.Weight != 82 || res.UserData.ExperienceLevel != model.Advanced {
		t.Errorf("UserData = %+v, want stored profile", res.UserData)
	}
}

func TestStartRequiresUserID(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Start(context.Background(), "", nil); !errors.Is(err, util.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFullTrainingFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := f.start(t)

	b, err := f.svc.ApplyBuoyancy(ctx, id, model.BuoyancyInput{UserWeight: 70, SuitWeight: 150, AdditionalWeight: 10, ElapsedMs: 1200})
	if err != nil {
		t.Fatalf("ApplyBuoyancy() error = %v", err)
	}
	if b.Score != 100 || b.Status != scoring.Neutral || !b.PhaseCompleted {
		t.Errorf("buoyancy = %+v", b)
	}

	h, err := f.svc.ApplyHatch(ctx, id, model.HatchInput{Force: 45, HoldTimeMs: 3000, Attempts: 2})
	if err != nil {
		t.Fatalf("ApplyHatch() error = %v", err)
	}
	if h.Score != 100 || !h.PhaseCompleted || h.HoldTimeMs != 3000 {
		t.Errorf("hatch = %+v", h)
	}

	r, err := f.svc.ApplyRepair(ctx, id, model.RepairInput{Torque: 3.0, CompletedScrews: 8, ScrewCount: 8, ElapsedMs: 800})
	if err != nil {
		t.Fatalf("ApplyRepair() error = %v", err)
	}
	if r.Score != 100 || r.Progress != 100 || !r.PhaseCompleted {
		t.Errorf("repair = %+v", r)
	}

	in, err := f.svc.ApplyInstallation(ctx, id, model.InstallationInput{PositionError: 0, AngleError: 0})
	if err != nil {
		t.Fatalf("ApplyInstallation() error = %v", err)
	}
	if in.Score != 100 || !in.IsPrecise {
		t.Errorf("installation = %+v", in)
	}

	s, _ := f.svc.GetSession(ctx, id)
	if got := s.Performance(); got.TotalTimeMs != 2000 || got.Attempts != 2 {
		t.Errorf("Performance before complete = %+v", got)
	}
	if s.Phases().CurrentPhase != model.PhaseCount {
		t.Errorf("CurrentPhase = %d", s.Phases().CurrentPhase)
	}

	f.clock.Advance(90 * time.Second)
	res, err := f.svc.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.OverallScore != 100 || res.Grade != scoring.GradeAPlus || res.Status != model.SessionCompleted {
		t.Errorf("Complete() = %+v", res)
	}
	if res.TotalTimeMs != 90000 {
		t.Errorf("TotalTimeMs = %d, want wall-clock 90000", res.TotalTimeMs)
	}
	if res.PhaseScores != [4]int{100, 100, 100, 100} || res.Completed != [4]bool{true, true, true, true} {
		t.Errorf("phases = %v %v", res.PhaseScores, res.Completed)
	}

	s, _ = f.svc.GetSession(ctx, id)
	if s.EndTime == nil || !s.EndTime.Equal(f.clock.Now()) {
		t.Errorf("EndTime = %v", s.EndTime)
	}
}

func TestPartialScoresGrade(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := f.start(t)

	if _, err := f.svc.ApplyBuoyancy(ctx, id, model.BuoyancyInput{UserWeight: 70, SuitWeight: 150, AdditionalWeight: 12}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ApplyHatch(ctx, id, model.HatchInput{Force: 15}); err != nil {
		t.Fatal(err)
	}
	r, err := f.svc.ApplyRepair(ctx, id, model.RepairInput{Torque: 4.0, CompletedScrews: 4, ScrewCount: 8})
	if err != nil {
		t.Fatal(err)
	}
	if r.Score != 40 || r.PhaseCompleted {
		t.Errorf("repair = %+v", r)
	}
	if _, err := f.svc.ApplyInstallation(ctx, id, model.InstallationInput{PositionError: 5, AngleError: 2.5}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Complete(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	// (0 + 25 + 40 + 50) / 4 = 28.75
	if res.OverallScore != 29 || res.Grade != scoring.GradeF {
		t.Errorf("Complete() = %d %s", res.OverallScore, res.Grade)
	}
	s, _ := f.svc.GetSession(ctx, id)
	if s.Phases().CurrentPhase != 1 {
		t.Errorf("CurrentPhase = %d, want first incomplete phase", s.Phases().CurrentPhase)
	}
}

func TestApplyOverwritesPhaseScore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := f.start(t)

	for _, force := range []float64{15, 45, 45} {
		if _, err := f.svc.ApplyHatch(ctx, id, model.HatchInput{Force: force}); err != nil {
			t.Fatal(err)
		}
	}
	s, _ := f.svc.GetSession(ctx, id)
	if got := s.Phases().Scores[model.PhaseHatch]; got != 100 {
		t.Errorf("hatch score = %d, want latest 100", got)
	}
	if got := s.Performance().Attempts; got != 3 {
		t.Errorf("Attempts = %d, want 3 (default 1 per call)", got)
	}
}

func TestApplyOnMissingSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ApplyBuoyancy(ctx, "nbl_missing_session", model.BuoyancyInput{UserWeight: 70, SuitWeight: 150})
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("ApplyBuoyancy err = %v", err)
	}
	if _, err := f.svc.Complete(ctx, "nbl_missing_session"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("Complete err = %v", err)
	}
}

func TestFinishedSessionRejectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*TrainingService, string) error
		status model.SessionStatus
	}{
		{"completed", func(s *TrainingService, id string) error {
			_, err := s.Complete(context.Background(), id)
			return err
		}, model.SessionCompleted},
		{"aborted", func(s *TrainingService, id string) error {
			_, err := s.Abort(context.Background(), id)
			return err
		}, model.SessionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			id := f.start(t)
			if err := tt.finish(f.svc, id); err != nil {
				t.Fatal(err)
			}

			if _, err := f.svc.ApplyInstallation(ctx, id, model.InstallationInput{}); !errors.Is(err, util.ErrSessionNotActive) {
				t.Errorf("ApplyInstallation err = %v, want ErrSessionNotActive", err)
			}
			if _, err := f.svc.Complete(ctx, id); !errors.Is(err, util.ErrSessionNotActive) {
				t.Errorf("Complete err = %v, want ErrSessionNotActive", err)
			}
			s, _ := f.svc.GetSession(ctx, id)
			if s.Status != tt.status {
				t.Errorf("Status = %s, want %s", s.Status, tt.status)
			}
		})
	}
}

func TestAbortLeavesScoreUnset(t *testing.T) {
	f := newFixture()
	id := f.start(t)

	s, err := f.svc.Abort(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != model.SessionFailed || s.EndTime == nil || s.OverallScore != 0 || s.Grade != "F" {
		t.Errorf("aborted session = %+v", s)
	}
}

func TestApplyRepairRejectsInvalidCounts(t *testing.T) {
	f := newFixture()
	id := f.start(t)

	for _, in := range []model.RepairInput{
		{Torque: 3, CompletedScrews: 1, ScrewCount: 0},
		{Torque: 3, CompletedScrews: -1, ScrewCount: 8},
	} {
		if _, err := f.svc.ApplyRepair(context.Background(), id, in); !errors.Is(err, util.ErrInvalidInput) {
			t.Errorf("ApplyRepair(%+v) err = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestUpdateFailureDiscardsResult(t *testing.T) {
	f := newFixture()
	id := f.start(t)
	f.sessions.updateErr = errors.New("disk full")

	out, err := f.svc.ApplyHatch(context.Background(), id, model.HatchInput{Force: 45})
	if err == nil || out != nil {
		t.Fatalf("ApplyHatch() = %+v, %v; want error", out, err)
	}
	f.sessions.updateErr = nil
	s, _ := f.svc.GetSession(context.Background(), id)
	if s.Phases().Scores[model.PhaseHatch] != 0 {
		t.Errorf("score persisted despite failed save")
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	f := newFixture()
	id := f.start(t)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ApplyHatch(context.Background(), id, model.HatchInput{Force: 40, Attempts: 1}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	s, _ := f.svc.GetSession(context.Background(), id)
	if got := s.Performance().Attempts; got != workers {
		t.Errorf("Attempts = %d, want %d", got, workers)
	}
	if n := f.svc.locks.size(); n != 0 {
		t.Errorf("lock table holds %d entries after release", n)
	}
}

func TestGetHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, f.start(t))
		f.clock.Advance(time.Minute)
	}
	if _, err := f.svc.Start(ctx, "trainee-02", nil); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.GetHistory(ctx, "trainee-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != HistoryLimit {
		t.Fatalf("len = %d, want %d", len(got), HistoryLimit)
	}
	if got[0].SessionID != ids[11] || got[9].SessionID != ids[2] {
		t.Errorf("history order = %s ... %s", got[0].SessionID, got[9].SessionID)
	}

	empty, err := f.svc.GetHistory(ctx, "nobody-00")
	if err != nil || len(empty) != 0 {
		t.Errorf("GetHistory(nobody) = %v, %v", empty, err)
	}
}

func TestSetParamsAppliesToNextOperation(t *testing.T) {
	f := newFixture()
	id := f.start(t)

	p := scoring.DefaultParams()
	p.ForceMin, p.ForceMax = 10, 20
	f.svc.SetParams(p)

	h, err := f.svc.ApplyHatch(context.Background(), id, model.HatchInput{Force: 15})
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsOptimal || h.Score != 100 {
		t.Errorf("hatch = %+v, want optimal under new range", h)
	}
}

type chanArchiver struct {
	got chan *model.TrainingSession
}

func (a *chanArchiver) Archive(ctx context.Context, s *model.TrainingSession) error {
	a.got <- s
	return nil
}

func TestCompleteArchivesReport(t *testing.T) {
	f := newFixture()
	arch := &chanArchiver{got: make(chan *model.TrainingSession, 1)}
	f.svc.SetArchiver(arch)
	id := f.start(t)

	if _, err := f.svc.Complete(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-arch.got:
		if s.SessionID != id || s.Status != model.SessionCompleted {
			t.Errorf("archived %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report was not archived")
	}
}
