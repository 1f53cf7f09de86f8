package avatar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memory-portal/internal/models"
)

// TalkAPI is the slice of the rendering service the orchestrator needs.
type TalkAPI interface {
	CreateTalk(ctx context.Context, imageURL, text string) (string, error)
	GetTalkStatus(ctx context.Context, talkID string) (TalkStatus, error)
}

// JobStore persists job records so finished clips survive a restart. The
// registry stays the authoritative in-session view.
type JobStore interface {
	SaveVideoJob(ctx context.Context, job *models.VideoJob) error
	MarkVideoJob(ctx context.Context, jobID string, status models.JobStatus, resultURL string, attempts int) error
}

// Orchestrator creates rendering jobs and drives each one's polling
// loop to a terminal state. Every tracked job gets its own goroutine
// with a fixed poll interval and a fixed attempt ceiling, so a job that
// never resolves remotely still stops consuming resources here: after
// maxAttempts polls it is marked abandoned and its schedule ends.
type Orchestrator struct {
	client      TalkAPI
	reg         *Registry
	store       JobStore
	logger      *zap.Logger
	interval    time.Duration
	maxAttempts int

	// baseCtx scopes all polling to the process lifetime rather than to
	// the HTTP request that triggered the job.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewOrchestrator(ctx context.Context, client TalkAPI, reg *Registry, store JobStore, logger *zap.Logger, interval time.Duration, maxAttempts int) *Orchestrator {
	return &Orchestrator{
		client:      client,
		reg:         reg,
		store:       store,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		baseCtx:     ctx,
	}
}

// CreateJob submits a rendering request for the given reply text,
// registers the resulting job in created status, and immediately starts
// its polling loop. The caller must have a bound avatar image; there is
// no retry here, a remote failure surfaces immediately and nothing is
// registered or tracked.
func (o *Orchestrator) CreateJob(ctx context.Context, userID, imageURL, text, sourceTurnID string) (string, error) {
	if imageURL == "" {
		return "", errors.New("avatar: avatar image URL must not be empty")
	}

	talkID, err := o.client.CreateTalk(ctx, imageURL, text)
	if err != nil {
		return "", fmt.Errorf("avatar: create talk: %w", err)
	}

	job := models.VideoJob{
		ID:           uuid.NewString(),
		JobID:        talkID,
		UserID:       userID,
		SourceTurnID: sourceTurnID,
		Status:       models.JobCreated,
	}
	o.reg.Register(job)

	if o.store != nil {
		if err := o.store.SaveVideoJob(ctx, &job); err != nil {
			o.logger.Warn("failed to persist video job",
				zap.String("jobID", talkID),
				zap.Error(err))
		}
	}

	o.logger.Info("created avatar video job",
		zap.String("jobID", talkID),
		zap.String("sourceTurnID", sourceTurnID))

	o.trackJob(talkID)
	return talkID, nil
}

// trackJob starts the polling loop for a created job. It returns
// immediately; the loop runs until the job reaches a terminal state, the
// attempt ceiling is exhausted, or the orchestrator's context ends.
func (o *Orchestrator) trackJob(jobID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.track(jobID)
	}()
}

// Wait blocks until every tracking loop has finished. Used on shutdown
// and in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) track(jobID string) {
	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		select {
		case <-o.baseCtx.Done():
			return
		case <-timer.C:
		}

		attempts := o.reg.RecordAttempt(jobID)

		status, err := o.client.GetTalkStatus(o.baseCtx, jobID)
		if err != nil {
			// A failed poll burns an attempt but is not fatal; the job is
			// only given up once the ceiling is reached.
			o.logger.Warn("poll failed",
				zap.String("jobID", jobID),
				zap.Int("attempt", attempts),
				zap.Error(err))
			timer.Reset(o.interval)
			continue
		}

		switch status.Status {
		case talkDone:
			// A done report without a clip URL is not usable yet; keep
			// polling until one shows up or the ceiling runs out.
			if status.ResultURL == "" {
				o.logger.Warn("talk reported done without a result URL",
					zap.String("jobID", jobID),
					zap.Int("attempt", attempts))
				o.reg.Upsert(jobID, models.JobPending, "")
				break
			}
			o.finish(jobID, models.JobDone, status.ResultURL, attempts)
			return
		case talkError, talkRejected:
			o.finish(jobID, models.JobError, "", attempts)
			return
		default:
			o.reg.Upsert(jobID, models.JobPending, "")
		}

		timer.Reset(o.interval)
	}

	// Ceiling reached without the remote job resolving either way.
	job, _ := o.reg.Get(jobID)
	o.finish(jobID, models.JobAbandoned, "", job.Attempts)
}

func (o *Orchestrator) finish(jobID string, status models.JobStatus, resultURL string, attempts int) {
	if !o.reg.Upsert(jobID, status, resultURL) {
		// Already terminal; discard this observation.
		return
	}

	o.logger.Info("avatar video job finished",
		zap.String("jobID", jobID),
		zap.String("status", string(status)),
		zap.Int("attempts", attempts))

	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.MarkVideoJob(ctx, jobID, status, resultURL, attempts); err != nil {
		o.logger.Warn("failed to persist job outcome",
			zap.String("jobID", jobID),
			zap.Error(err))
	}
}
