package service

import (
	"context"
	"sync"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/dto"
	"moodchat-be/internal/model"
	"moodchat-be/internal/pkg/logger"
	"moodchat-be/internal/repository/unitofwork"
	"moodchat-be/pkg/classifier"
	"moodchat-be/pkg/events"
	pktNats "moodchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicMessageCreated is the in-process watermill topic the gateway publishes
// to after a message+job commit. The drain loop treats it as a wake-up; the
// durable queue itself lives in the jobs table, so a lost wake-up only delays
// a job until the next tick.
const TopicMessageCreated = "message.created"

// Broadcaster fans a frame out to every connected client. Implemented by the
// websocket hub; faked in tests.
type Broadcaster interface {
	BroadcastAll(frameType string, data interface{})
}

type IClassifyService interface {
	// Run drives the drain loop until the context is canceled or Stop is
	// called. It requeues jobs stranded in PROCESSING by a crash first.
	Run(ctx context.Context) error
	// Stop prevents new claims and waits for in-flight classifier calls to
	// finish or time out, bounded by the given context.
	Stop(ctx context.Context) error
	// DrainOnce claims and processes up to one batch. Returns the number of
	// jobs processed.
	DrainOnce(ctx context.Context) int
}

type classifyService struct {
	uowFactory     unitofwork.RepositoryFactory
	provider       classifier.Provider
	pubSub         *gochannel.GoChannel
	broadcaster    Broadcaster
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger

	interval  time.Duration
	batchSize int
	workers   int

	quit     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func NewClassifyService(
	uowFactory unitofwork.RepositoryFactory,
	provider classifier.Provider,
	pubSub *gochannel.GoChannel,
	broadcaster Broadcaster,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	interval time.Duration,
	batchSize, workers int,
) IClassifyService {
	if batchSize < 1 {
		batchSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &classifyService{
		uowFactory:     uowFactory,
		provider:       provider,
		pubSub:         pubSub,
		broadcaster:    broadcaster,
		eventPublisher: eventPublisher,
		logger:         log,
		interval:       interval,
		batchSize:      batchSize,
		workers:        workers,
		quit:           make(chan struct{}),
		finished:       make(chan struct{}),
	}
}

func (s *classifyService) Run(ctx context.Context) error {
	defer close(s.finished)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if n, err := uow.JobRepository().RequeueProcessing(ctx); err != nil {
		return err
	} else if n > 0 {
		s.logger.Warn("Classify", "Requeued jobs stranded by previous run", map[string]interface{}{"count": n})
	}

	wake := make(chan struct{}, 1)
	if s.pubSub != nil {
		messages, err := s.pubSub.Subscribe(ctx, TopicMessageCreated)
		if err != nil {
			return err
		}
		go func() {
			for msg := range messages {
				msg.Ack()
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case <-ticker.C:
		case <-wake:
		}
		s.DrainOnce(ctx)
	}
}

func (s *classifyService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })
	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainOnce processes at most batchSize jobs across at most `workers`
// concurrent classifier calls, then waits for all of them. Cycles never
// overlap, so the maximum sustainable arrival rate is batchSize/interval;
// anything above that accumulates as PENDING backlog by design.
func (s *classifyService) DrainOnce(ctx context.Context) int {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	var claimed []*model.ClassificationJob
	for len(claimed) < s.batchSize {
		job, err := uow.JobRepository().ClaimOldestPending(ctx)
		if err != nil {
			s.logger.Error("Classify", "Failed to claim job", map[string]interface{}{"error": err.Error()})
			break
		}
		if job == nil {
			break
		}
		claimed = append(claimed, job)
	}
	if len(claimed) == 0 {
		return 0
	}

	// Shutdown must let in-flight calls finish or hit their own timeout, so
	// execution is detached from the loop context.
	execCtx := context.WithoutCancel(ctx)

	jobs := make(chan *model.ClassificationJob)
	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(claimed) {
		workers = len(claimed)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				s.processJob(execCtx, job)
			}
		}()
	}
	for _, job := range claimed {
		jobs <- job
	}
	close(jobs)
	wg.Wait()

	return len(claimed)
}

func (s *classifyService) processJob(ctx context.Context, job *model.ClassificationJob) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	message, err := uow.MessageRepository().FindById(ctx, job.MessageId)
	if err != nil {
		s.fail(ctx, uow, job, err.Error())
		return
	}
	if message == nil {
		// 1:1 invariant broken outside this process; terminal, not retriable.
		job.Attempts = constant.JobMaxAttempts
		s.fail(ctx, uow, job, "message not found")
		return
	}

	result, err := s.provider.Classify(ctx, message.Text)
	if err != nil {
		s.fail(ctx, uow, job, err.Error())
		return
	}

	now := time.Now()
	if err := uow.MessageRepository().UpdateClassification(ctx, message.Id, result.Mood, result.Intensity, now); err != nil {
		s.fail(ctx, uow, job, err.Error())
		return
	}

	job.Status = constant.JobStatusDone
	job.LastError = ""
	if err := uow.JobRepository().Update(ctx, job); err != nil {
		s.logger.Error("Classify", "Failed to mark job done", map[string]interface{}{
			"job_id": job.Id.String(),
			"error":  err.Error(),
		})
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAll(constant.FrameClassificationUpdated, dto.ClassificationUpdated{
			MessageId: message.Id,
			Mood:      result.Mood,
			Intensity: result.Intensity,
		})
	}

	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeMessageClassified,
			Data: map[string]interface{}{
				"message_id": message.Id.String(),
				"mood":       result.Mood,
				"intensity":  result.Intensity,
			},
			OccurredAt: now,
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("Classify", "Failed to publish event", map[string]interface{}{"error": err.Error()})
		}
	}
}

// fail moves a job back to PENDING while attempts remain, or to terminal
// FAILED once the attempt budget is spent. The message keeps whatever
// classification it already has (default neutral).
func (s *classifyService) fail(ctx context.Context, uow unitofwork.UnitOfWork, job *model.ClassificationJob, reason string) {
	job.LastError = reason
	if job.Attempts >= constant.JobMaxAttempts {
		job.Status = constant.JobStatusFailed
		s.logger.Error("Classify", "Job failed terminally", map[string]interface{}{
			"job_id":   job.Id.String(),
			"attempts": job.Attempts,
			"error":    reason,
		})
	} else {
		job.Status = constant.JobStatusPending
		s.logger.Warn("Classify", "Job attempt failed, requeued", map[string]interface{}{
			"job_id":   job.Id.String(),
			"attempts": job.Attempts,
			"error":    reason,
		})
	}
	if err := uow.JobRepository().Update(ctx, job); err != nil {
		s.logger.Error("Classify", "Failed to persist job state", map[string]interface{}{
			"job_id": job.Id.String(),
			"error":  err.Error(),
		})
	}
}
