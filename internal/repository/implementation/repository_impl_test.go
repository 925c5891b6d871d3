package implementation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ChatSession{},
		&model.Message{},
		&model.ClassificationJob{},
	))

	t.Cleanup(func() {
		db.Exec("DELETE FROM classification_jobs")
		db.Exec("DELETE FROM messages")
		db.Exec("DELETE FROM chat_sessions")
		db.Exec("DELETE FROM users")
	})
	return db
}

func TestUserUpsertPreservesExperimentGroup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.User{
		Id:              "alice",
		DisplayName:     "Alice",
		ExperimentGroup: constant.GroupA,
		LastActiveAt:    time.Now(),
	}))

	// A later upsert with a different recomputed group must not rewrite it.
	require.NoError(t, repo.Upsert(ctx, &model.User{
		Id:              "alice",
		DisplayName:     "Alicia",
		ExperimentGroup: constant.GroupB,
		LastActiveAt:    time.Now(),
	}))

	user, err := repo.FindById(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, constant.GroupA, user.ExperimentGroup)
	assert.Equal(t, "Alicia", user.DisplayName)
}

func TestUserFindByIdMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user, err := repo.FindById(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestSessionOpenCloseLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	started := time.Now().Add(-90 * time.Second)
	session := &model.ChatSession{Id: uuid.New(), UserId: "alice", StartedAt: started}
	require.NoError(t, repo.Create(ctx, session))

	open, err := repo.FindOpenByUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, session.Id, open.Id)

	endedAt := started.Add(90 * time.Second)
	require.NoError(t, repo.Close(ctx, session.Id, endedAt))

	open, err = repo.FindOpenByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, open)

	var closed model.ChatSession
	require.NoError(t, db.First(&closed, "id = ?", session.Id).Error)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, int64(90000), closed.DurationMs)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	session := &model.ChatSession{Id: uuid.New(), UserId: "alice", StartedAt: started}
	require.NoError(t, repo.Create(ctx, session))

	first := started.Add(30 * time.Second)
	require.NoError(t, repo.Close(ctx, session.Id, first))
	// A second close must not move ended_at or duration.
	require.NoError(t, repo.Close(ctx, session.Id, first.Add(time.Hour)))

	var closed model.ChatSession
	require.NoError(t, db.First(&closed, "id = ?", session.Id).Error)
	assert.Equal(t, int64(30000), closed.DurationMs)

	// Closing an unknown session is a no-op, not an error.
	assert.NoError(t, repo.Close(ctx, uuid.New(), time.Now()))
}

func TestCloseAllOpen(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		require.NoError(t, repo.Create(ctx, &model.ChatSession{
			Id:        uuid.New(),
			UserId:    user,
			StartedAt: time.Now().Add(-time.Minute),
		}))
	}
	alreadyClosed := &model.ChatSession{Id: uuid.New(), UserId: "carol", StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, alreadyClosed))
	require.NoError(t, repo.Close(ctx, alreadyClosed.Id, time.Now().Add(-30*time.Minute)))

	n, err := repo.CloseAllOpen(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, user := range []string{"alice", "bob", "carol"} {
		open, err := repo.FindOpenByUser(ctx, user)
		require.NoError(t, err)
		assert.Nil(t, open)
	}
}

func TestMessageListRecentOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &model.Message{
			Id:          uuid.New(),
			UserId:      "alice",
			DisplayName: "Alice",
			Text:        fmt.Sprintf("msg-%d", i),
			Mood:        constant.MoodNeutral,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// The newest 3, served oldest-first.
	assert.Equal(t, "msg-2", recent[0].Text)
	assert.Equal(t, "msg-3", recent[1].Text)
	assert.Equal(t, "msg-4", recent[2].Text)
}

func TestMessageUpdateClassification(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := &model.Message{
		Id:          uuid.New(),
		UserId:      "alice",
		DisplayName: "Alice",
		Text:        "what a day",
		Mood:        constant.MoodNeutral,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.Create(ctx, msg))

	at := time.Now()
	require.NoError(t, repo.UpdateClassification(ctx, msg.Id, "positive", 0.7, at))

	got, err := repo.FindById(ctx, msg.Id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "positive", got.Mood)
	assert.Equal(t, 0.7, got.Intensity)
	assert.NotNil(t, got.ClassifiedAt)
}

func seedPendingJob(t *testing.T, db *gorm.DB, createdAt time.Time) *model.ClassificationJob {
	t.Helper()
	job := &model.ClassificationJob{
		Id:        uuid.New(),
		MessageId: uuid.New(),
		Status:    constant.JobStatusPending,
		CreatedAt: createdAt,
	}
	require.NoError(t, NewJobRepository(db).Create(context.Background(), job))
	return job
}

func TestClaimOldestPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	newer := seedPendingJob(t, db, base.Add(10*time.Second))
	older := seedPendingJob(t, db, base)

	claimed, err := repo.ClaimOldestPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, older.Id, claimed.Id)
	assert.Equal(t, constant.JobStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	claimed, err = repo.ClaimOldestPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, newer.Id, claimed.Id)

	claimed, err = repo.ClaimOldestPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed, "no pending jobs left to claim")
}

func TestRequeueProcessing(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	seedPendingJob(t, db, time.Now())
	_, err := repo.ClaimOldestPending(ctx)
	require.NoError(t, err)

	n, err := repo.RequeueProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := repo.CountByStatus(ctx, constant.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	processing, err := repo.CountByStatus(ctx, constant.JobStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
}

func TestJobUpdatePersistsStatusAndError(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job := seedPendingJob(t, db, time.Now())
	claimed, err := repo.ClaimOldestPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	claimed.Status = constant.JobStatusFailed
	claimed.LastError = "classifier unavailable"
	require.NoError(t, repo.Update(ctx, claimed))

	got, err := repo.FindByMessageId(ctx, job.MessageId)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, constant.JobStatusFailed, got.Status)
	assert.Equal(t, "classifier unavailable", got.LastError)
	assert.Equal(t, 1, got.Attempts)
}
