package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"habit-quest-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =============================================================================
// STORE-BACKED SERVICE TESTS
//
// Exercise the transactional paths against an in-memory sqlite database with
// the same unique indexes as the postgres schema. Each test gets a fresh
// database for isolation; a single connection keeps sqlite happy under
// concurrent transactions.
// =============================================================================

var testSchema = []string{
	`CREATE TABLE skill_trees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	)`,
	`CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		profile_picture TEXT,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		xp_total INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 0,
		streak_count INTEGER NOT NULL DEFAULT 0,
		milestone_level TEXT NOT NULL DEFAULT 'none',
		last_activity_day DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE activity_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		skill_id TEXT,
		activity_name TEXT NOT NULL,
		xp_awarded INTEGER NOT NULL,
		source TEXT NOT NULL DEFAULT 'manual',
		quest_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE user_skills (
		user_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME,
		PRIMARY KEY (user_id, skill_id)
	)`,
	`CREATE TABLE quests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		xp_reward INTEGER NOT NULL,
		quest_type TEXT NOT NULL,
		completion_type TEXT NOT NULL DEFAULT '',
		completion_requirement INTEGER NOT NULL DEFAULT 0,
		parent_quest_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE quest_skills (
		id TEXT PRIMARY KEY,
		quest_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		xp_share INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE user_quests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quest_id TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		reset_time DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE strava_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		strava_id INTEGER NOT NULL,
		activity_type TEXT NOT NULL,
		distance_meters REAL NOT NULL DEFAULT 0,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_quest_skill ON quest_skills (quest_id, skill_id)`,
	`CREATE UNIQUE INDEX idx_user_quest_window ON user_quests (user_id, quest_id, reset_time)`,
	`CREATE UNIQUE INDEX idx_strava_user_activity ON strava_activities (user_id, strava_id)`,
}

type testStore struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	ledger   *LedgerService
	quests   *QuestService
	progress *ProgressService
}

func setupTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to unwrap database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	clock := clockwork.NewFakeClockAt(time.Date(2025, time.June, 20, 10, 0, 0, 0, time.UTC))
	events := NewProgressBroadcaster()
	ledger := NewLedgerService(db, clock, events)
	quests := NewQuestService(db, clock, ledger, events, "")
	progress := NewProgressService(db, clock, quests)

	return &testStore{db: db, clock: clock, ledger: ledger, quests: quests, progress: progress}
}

func (ts *testStore) seedSkill(t *testing.T, name string) string {
	t.Helper()
	skill, err := ts.quests.CreateSkill(name, "#4f46e5", "star")
	if err != nil {
		t.Fatalf("failed to seed skill %s: %v", name, err)
	}
	return skill.ID
}

func (ts *testStore) seedUser(t *testing.T, userID string) {
	t.Helper()
	if _, err := ts.ledger.EnsureProfile(userID, userID, userID+"@example.com", "UTC"); err != nil {
		t.Fatalf("failed to seed profile %s: %v", userID, err)
	}
}

func (ts *testStore) completionCount(t *testing.T, userID, questID string) int64 {
	t.Helper()
	var count int64
	err := ts.db.Model(&models.UserQuest{}).
		Where("user_id = ? AND quest_id = ?", userID, questID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count completions: %v", err)
	}
	return count
}

func TestComplete_ExactlyOncePerWindow(t *testing.T) {
	ts := setupTestStore(t)
	skillID := ts.seedSkill(t, "Fitness")
	ts.seedUser(t, "user-1")

	quest, err := ts.quests.CreateQuest(QuestInput{
		Title:     "Morning stretch",
		XPReward:  50,
		QuestType: models.QuestTypeDaily,
		Skills:    []QuestSkillInput{{SkillID: skillID, XPShare: 100}},
	})
	if err != nil {
		t.Fatalf("failed to create quest: %v", err)
	}

	result, err := ts.quests.Complete("user-1", quest.ID)
	if err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if len(result.Credits) != 1 || result.Credits[0].XP != 50 {
		t.Errorf("expected a single 50 XP credit, got %+v", result.Credits)
	}

	if _, err := ts.quests.Complete("user-1", quest.ID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("second completion: expected ErrAlreadyCompleted, got %v", err)
	}
	if got := ts.completionCount(t, "user-1", quest.ID); got != 1 {
		t.Errorf("expected exactly 1 completion row, got %d", got)
	}

	// The unique window index is what decides races the pre-check misses.
	dup := models.UserQuest{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		QuestID:     quest.ID,
		CompletedAt: ts.clock.Now(),
		ResetTime:   result.ResetTime,
	}
	if err := ts.db.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("duplicate window insert: expected gorm.ErrDuplicatedKey, got %v", err)
	}

	total, err := ts.ledger.TotalXP("user-1", skillID)
	if err != nil {
		t.Fatalf("failed to read skill total: %v", err)
	}
	if total != 50 {
		t.Errorf("expected 50 XP credited once, got %d", total)
	}
}

func TestIngest_DeduplicatesByExternalID(t *testing.T) {
	ts := setupTestStore(t)
	skillID := ts.seedSkill(t, "Fitness")
	ts.seedUser(t, "user-1")

	svc := NewStravaService(ts.db, ts.ledger, ts.progress, StravaPolicy{
		AwardActivityXP: true,
		FitnessSkillID:  skillID,
	})

	occurred := ts.clock.Now().AddDate(0, 0, -2).Truncate(time.Second)
	act := ExternalActivity{
		ExternalID:     42,
		Type:           "Run",
		DistanceMeters: 5000,
		OccurredAt:     occurred,
	}

	first, err := svc.Ingest("user-1", act)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.Duplicate || first.XPAwarded != 50 {
		t.Errorf("first ingest: expected 50 XP and not duplicate, got %+v", first)
	}

	second, err := svc.Ingest("user-1", act)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if !second.Duplicate || second.XPAwarded != 0 {
		t.Errorf("re-ingest: expected duplicate with no XP, got %+v", second)
	}

	var rows int64
	if err := ts.db.Model(&models.StravaActivity{}).Where("user_id = ?", "user-1").Count(&rows).Error; err != nil {
		t.Fatalf("failed to count stored activities: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected 1 stored activity, got %d", rows)
	}

	total, err := ts.ledger.TotalXP("user-1", skillID)
	if err != nil {
		t.Fatalf("failed to read skill total: %v", err)
	}
	if total != 50 {
		t.Errorf("expected XP awarded exactly once, got %d", total)
	}

	// Backfilled activities are credited to the day they happened, not the
	// day they arrived.
	var entry models.ActivityLog
	if err := ts.db.Where("user_id = ? AND source = ?", "user-1", models.SourceStrava).First(&entry).Error; err != nil {
		t.Fatalf("failed to load ledger entry: %v", err)
	}
	if !entry.CreatedAt.Equal(occurred) {
		t.Errorf("ledger entry stamped %v, want occurrence time %v", entry.CreatedAt, occurred)
	}
}

func TestTotalActivitiesRule_CompletesExactlyOnce(t *testing.T) {
	ts := setupTestStore(t)
	skillID := ts.seedSkill(t, "Reading")
	ts.seedUser(t, "user-1")

	quest, err := ts.quests.CreateQuest(QuestInput{
		Title:                 "Bookworm",
		XPReward:              40,
		QuestType:             models.QuestTypeDaily,
		CompletionType:        models.CompletionTotalActivities,
		CompletionRequirement: 3,
		Skills:                []QuestSkillInput{{SkillID: skillID, XPShare: 100}},
	})
	if err != nil {
		t.Fatalf("failed to create quest: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := ts.ledger.LogActivity("user-1", &skillID, "Read a chapter", 10, models.SourceManual); err != nil {
			t.Fatalf("failed to log activity %d: %v", i, err)
		}
	}

	state, err := ts.progress.EvaluateAndComplete("user-1", quest)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if !state.Satisfied || state.Current != 3 {
		t.Errorf("expected satisfied at 3/3, got %d/%d satisfied=%v", state.Current, state.Required, state.Satisfied)
	}
	if got := ts.completionCount(t, "user-1", quest.ID); got != 1 {
		t.Fatalf("expected exactly 1 completion, got %d", got)
	}

	// Re-evaluating the same data is a no-op, and the quest's own reward row
	// must not feed back into the count.
	state, err = ts.progress.EvaluateAndComplete("user-1", quest)
	if err != nil {
		t.Fatalf("re-evaluation failed: %v", err)
	}
	if state.Current != 3 {
		t.Errorf("quest-derived rows leaked into the count: got %d, want 3", state.Current)
	}
	if got := ts.completionCount(t, "user-1", quest.ID); got != 1 {
		t.Errorf("re-evaluation added a completion: got %d, want 1", got)
	}
}

func TestDistanceQuest_IgnoresNonQualifyingActivityTypes(t *testing.T) {
	ts := setupTestStore(t)
	skillID := ts.seedSkill(t, "Fitness")
	ts.seedUser(t, "user-1")
	ts.seedUser(t, "user-2")

	quest, err := ts.quests.CreateQuest(QuestInput{
		Title:                 "5K run",
		XPReward:              100,
		QuestType:             models.QuestTypeDaily,
		CompletionType:        models.CompletionExternalDistance,
		CompletionRequirement: 5000,
		Skills:                []QuestSkillInput{{SkillID: skillID, XPShare: 100}},
	})
	if err != nil {
		t.Fatalf("failed to create quest: %v", err)
	}

	now := ts.clock.Now()
	rows := []models.StravaActivity{
		{ID: uuid.NewString(), UserID: "user-1", StravaID: 1, ActivityType: "Ride", DistanceMeters: 8000, OccurredAt: now},
		{ID: uuid.NewString(), UserID: "user-1", StravaID: 2, ActivityType: "Run", DistanceMeters: 6000, OccurredAt: now.Add(-time.Hour)},
		{ID: uuid.NewString(), UserID: "user-2", StravaID: 3, ActivityType: "Ride", DistanceMeters: 8000, OccurredAt: now},
	}
	for i := range rows {
		if err := ts.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("failed to seed activity: %v", err)
		}
	}

	// A newer ride must not shadow the qualifying run.
	state, err := ts.progress.Evaluate("user-1", quest)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if state.Current != 6000 || !state.Satisfied {
		t.Errorf("expected the 6000m run to satisfy, got %d satisfied=%v", state.Current, state.Satisfied)
	}

	// A user with only a ride has no qualifying distance at all.
	state, err = ts.progress.Evaluate("user-2", quest)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if state.Current != 0 || state.Satisfied {
		t.Errorf("ride satisfied a run-distance quest: got %d satisfied=%v", state.Current, state.Satisfied)
	}
	if err := ts.progress.EvaluateDistanceQuests("user-2"); err != nil {
		t.Fatalf("distance sweep failed: %v", err)
	}
	if got := ts.completionCount(t, "user-2", quest.ID); got != 0 {
		t.Errorf("ride auto-completed a run-distance quest: %d completions", got)
	}
}

func TestConcurrentLogActivity_KeepsCachesConsistent(t *testing.T) {
	ts := setupTestStore(t)
	skillID := ts.seedSkill(t, "Fitness")
	ts.seedUser(t, "user-1")

	var wg sync.WaitGroup
	for _, xp := range []int64{30, 70} {
		wg.Add(1)
		go func(xp int64) {
			defer wg.Done()
			if _, err := ts.ledger.LogActivity("user-1", &skillID, "Workout", xp, models.SourceManual); err != nil {
				t.Errorf("failed to log activity: %v", err)
			}
		}(xp)
	}
	wg.Wait()

	profile, err := ts.ledger.GetProfile("user-1")
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if profile.XPTotal != 100 {
		t.Errorf("profile total = %d, want 100", profile.XPTotal)
	}
	if profile.Level != LevelFromXP(100).Level {
		t.Errorf("profile level = %d, want %d", profile.Level, LevelFromXP(100).Level)
	}

	var cached models.UserSkill
	if err := ts.db.Where("user_id = ? AND skill_id = ?", "user-1", skillID).First(&cached).Error; err != nil {
		t.Fatalf("failed to load skill cache: %v", err)
	}
	if cached.XP != 100 {
		t.Errorf("skill cache = %d, want 100", cached.XP)
	}
}
