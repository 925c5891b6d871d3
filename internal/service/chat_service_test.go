package service

import (
	"context"
	"testing"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/dto"
	"moodchat-be/internal/model"
	"moodchat-be/internal/presence"
	"moodchat-be/internal/ratelimit"
	"moodchat-be/internal/repository/memory"
	"moodchat-be/pkg/classifier"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	svc     IChatService
	store   *memory.Store
	emitter *fakeEmitter
}

func newChatFixture(t *testing.T, rateMax int) *chatFixture {
	t.Helper()
	store := memory.NewStore()
	factory := memory.NewRepositoryFactory(store)
	registry := presence.NewRegistry()
	emitter := &fakeEmitter{}
	lobby := NewLobbyService(factory, registry, nil, nopLogger{})
	svc := NewChatService(
		factory,
		lobby,
		registry,
		ratelimit.NewLimiter(rateMax, 5*time.Second),
		memory.NewReplayCache(2*time.Second),
		nil,
		emitter,
		nopLogger{},
		50,
	)
	return &chatFixture{svc: svc, store: store, emitter: emitter}
}

func (f *chatFixture) join(t *testing.T, userId, displayName string) uuid.UUID {
	t.Helper()
	connID := uuid.New()
	err := f.svc.Join(context.Background(), connID, dto.JoinRequest{UserId: userId, DisplayName: displayName})
	require.NoError(t, err)
	return connID
}

func TestJoinRejectsInvalidDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too long", "this display name is much too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, 5)
			connID := uuid.New()
			err := f.svc.Join(context.Background(), connID, dto.JoinRequest{UserId: "alice", DisplayName: tt.displayName})
			assert.NoError(t, err)

			rejected := f.emitter.sentOfType(constant.FrameRejected)
			require.Len(t, rejected, 1)
			rej := rejected[0].Data.(dto.Rejection)
			assert.Equal(t, constant.RejectInvalidPayload, rej.Kind)
			assert.Empty(t, f.emitter.sentOfType(constant.FrameAck))
		})
	}
}

func TestJoinAcksWithIdentityAndPresence(t *testing.T) {
	f := newChatFixture(t, 5)
	connID := f.join(t, "alice", "Alice")

	acks := f.emitter.sentOfType(constant.FrameAck)
	require.Len(t, acks, 1)
	assert.Equal(t, connID, acks[0].ConnID)

	ack := acks[0].Data.(dto.JoinAck)
	assert.Equal(t, "alice", ack.UserId)
	assert.NotEmpty(t, ack.ExperimentGroup)
	assert.NotEqual(t, uuid.Nil, ack.SessionId)
	require.Len(t, ack.OnlineUsers, 1)
	assert.Equal(t, "alice", ack.OnlineUsers[0].UserId)

	presenceFrames := f.emitter.broadcastOfType(constant.FramePresenceChanged)
	require.Len(t, presenceFrames, 1)
}

func TestJoinReplaysRecentMessages(t *testing.T) {
	f := newChatFixture(t, 5)
	ctx := context.Background()

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	for _, text := range []string{"first", "second"} {
		err := uow.MessageRepository().Create(ctx, &model.Message{
			Id:          uuid.New(),
			UserId:      "bob",
			DisplayName: "Bob",
			Text:        text,
			Mood:        constant.MoodNeutral,
		})
		require.NoError(t, err)
	}

	f.join(t, "alice", "Alice")

	acks := f.emitter.sentOfType(constant.FrameAck)
	require.Len(t, acks, 1)
	ack := acks[0].Data.(dto.JoinAck)
	require.Len(t, ack.RecentMessages, 2)
	assert.Equal(t, "first", ack.RecentMessages[0].Text)
	assert.Equal(t, "second", ack.RecentMessages[1].Text)
}

func TestSendMessageBeforeJoinIsDropped(t *testing.T) {
	f := newChatFixture(t, 5)
	err := f.svc.SendMessage(context.Background(), uuid.New(), dto.SendMessageRequest{UserId: "alice", Text: "hi"})
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.Empty(t, f.emitter.sent)
	assert.Empty(t, f.emitter.broadcast)
}

func TestSendMessageIdentityMismatch(t *testing.T) {
	f := newChatFixture(t, 5)
	connID := f.join(t, "alice", "Alice")

	err := f.svc.SendMessage(context.Background(), connID, dto.SendMessageRequest{UserId: "mallory", Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	rejected := f.emitter.sentOfType(constant.FrameRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, constant.RejectInvalidPayload, rejected[0].Data.(dto.Rejection).Kind)
	assert.Empty(t, f.emitter.broadcastOfType(constant.FrameMessageCreated))
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newChatFixture(t, 5)
	connID := f.join(t, "alice", "Alice")

	err := f.svc.SendMessage(context.Background(), connID, dto.SendMessageRequest{UserId: "alice", Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, f.emitter.broadcastOfType(constant.FrameMessageCreated))
}

func TestSendMessagePersistsMessageAndJob(t *testing.T) {
	f := newChatFixture(t, 5)
	ctx := context.Background()
	connID := f.join(t, "alice", "Alice")

	err := f.svc.SendMessage(ctx, connID, dto.SendMessageRequest{UserId: "alice", Text: "  hello world  "})
	require.NoError(t, err)

	broadcasts := f.emitter.broadcastOfType(constant.FrameMessageCreated)
	require.Len(t, broadcasts, 1)
	msg := broadcasts[0].Data.(dto.MessageResponse)
	assert.Equal(t, "hello world", msg.Text)
	assert.Equal(t, constant.MoodNeutral, msg.Mood)
	assert.Equal(t, float64(0), msg.Intensity)
	assert.Equal(t, "Alice", msg.DisplayName)

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	job, err := uow.JobRepository().FindByMessageId(ctx, msg.Id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, constant.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newChatFixture(t, 2)
	ctx := context.Background()
	connID := f.join(t, "alice", "Alice")

	for i := 0; i < 2; i++ {
		err := f.svc.SendMessage(ctx, connID, dto.SendMessageRequest{UserId: "alice", Text: "hi"})
		require.NoError(t, err)
	}

	err := f.svc.SendMessage(ctx, connID, dto.SendMessageRequest{UserId: "alice", Text: "one too many"})
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)

	rejected := f.emitter.sentOfType(constant.FrameRejected)
	require.Len(t, rejected, 1)
	rej := rejected[0].Data.(dto.Rejection)
	assert.Equal(t, constant.RejectRateLimited, rej.Kind)
	assert.Greater(t, rej.RetryAfterMs, int64(0))
	assert.LessOrEqual(t, rej.RetryAfterMs, int64(5000))

	// The throttled message never reaches the room or the store.
	assert.Len(t, f.emitter.broadcastOfType(constant.FrameMessageCreated), 2)
	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	n, err := uow.JobRepository().CountByStatus(ctx, constant.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLeaveBroadcastsPresence(t *testing.T) {
	f := newChatFixture(t, 5)
	ctx := context.Background()
	connID := f.join(t, "alice", "Alice")

	err := f.svc.Leave(ctx, connID)
	require.NoError(t, err)

	presenceFrames := f.emitter.broadcastOfType(constant.FramePresenceChanged)
	require.Len(t, presenceFrames, 2) // one for join, one for leave
	last := presenceFrames[1].Data.(dto.PresenceChanged)
	assert.Empty(t, last.OnlineUsers)

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	open, err := uow.SessionRepository().FindOpenByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestLeaveUnknownConnIsNoop(t *testing.T) {
	f := newChatFixture(t, 5)
	err := f.svc.Leave(context.Background(), uuid.New())
	assert.NoError(t, err)
}

func TestTwoTabsOnePresenceEntry(t *testing.T) {
	f := newChatFixture(t, 5)
	ctx := context.Background()

	tab1 := f.join(t, "alice", "Alice")
	tab2 := f.join(t, "alice", "Alice")

	presenceFrames := f.emitter.broadcastOfType(constant.FramePresenceChanged)
	require.Len(t, presenceFrames, 2)
	last := presenceFrames[1].Data.(dto.PresenceChanged)
	require.Len(t, last.OnlineUsers, 1, "two tabs of one user are one presence entry")

	// Closing the first tab must keep the user online and the session open.
	require.NoError(t, f.svc.Leave(ctx, tab1))
	presenceFrames = f.emitter.broadcastOfType(constant.FramePresenceChanged)
	last = presenceFrames[len(presenceFrames)-1].Data.(dto.PresenceChanged)
	require.Len(t, last.OnlineUsers, 1)

	uow := memory.NewRepositoryFactory(f.store).NewUnitOfWork(ctx)
	open, err := uow.SessionRepository().FindOpenByUser(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, open)

	require.NoError(t, f.svc.Leave(ctx, tab2))
	open, err = uow.SessionRepository().FindOpenByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, open)
}

// End to end: a sent message is broadcast neutral first, then updated once
// the drain loop has asked the classifier.
func TestMessageFlowThroughClassification(t *testing.T) {
	f := newChatFixture(t, 5)
	ctx := context.Background()
	connID := f.join(t, "alice", "Alice")

	provider := newFakeProvider()
	provider.results["what a great day"] = &classifier.Result{Mood: "positive", Intensity: 0.9}
	classify := NewClassifyService(
		memory.NewRepositoryFactory(f.store),
		provider,
		nil,
		f.emitter,
		nil,
		nopLogger{},
		10*time.Millisecond,
		4,
		2,
	)

	require.NoError(t, f.svc.SendMessage(ctx, connID, dto.SendMessageRequest{UserId: "alice", Text: "what a great day"}))

	created := f.emitter.broadcastOfType(constant.FrameMessageCreated)
	require.Len(t, created, 1)
	msg := created[0].Data.(dto.MessageResponse)
	assert.Equal(t, constant.MoodNeutral, msg.Mood)

	assert.Equal(t, 1, classify.DrainOnce(ctx))

	updates := f.emitter.broadcastOfType(constant.FrameClassificationUpdated)
	require.Len(t, updates, 1)
	upd := updates[0].Data.(dto.ClassificationUpdated)
	assert.Equal(t, msg.Id, upd.MessageId)
	assert.Equal(t, "positive", upd.Mood)
	assert.Equal(t, 0.9, upd.Intensity)

	// A late joiner replays the classified version.
	f.join(t, "bob", "Bob")
	acks := f.emitter.sentOfType(constant.FrameAck)
	require.Len(t, acks, 2)
	replay := acks[1].Data.(dto.JoinAck).RecentMessages
	require.Len(t, replay, 1)
	assert.Equal(t, "positive", replay[0].Mood)
}
