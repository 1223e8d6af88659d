// Package worker runs the background job loop: recording creation hand-offs
// from ended streams and VOD mirroring into S3, plus the idempotency ledger
// housekeeping sweep.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vistream/backend/internal/ledger"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/internal/recordings"
	"github.com/vistream/backend/pkg/queue"
	"github.com/vistream/backend/pkg/storage"
)

// JobSource supplies jobs to the loop and takes failed ones back for retry.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor executes recording jobs: creation of the pending row when a
// stream ends, and mirroring a ready provider asset into S3.
type Processor struct {
	service *recordings.Service
	store   recordings.Store
	s3      *storage.S3
	queue   JobSource
	logger  *zap.Logger
}

// NewProcessor creates the recording job processor.
func NewProcessor(service *recordings.Service, store recordings.Store, s3 *storage.S3, q JobSource, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{service: service, store: store, s3: s3, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRecordingCreate:
		return p.processCreate(ctx, job)
	case queue.JobTypeRecordingMirror:
		return p.processMirror(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processCreate(ctx context.Context, job *queue.Job) error {
	var payload queue.RecordingCreatePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	rec, err := p.service.CreateForStream(ctx, payload.StreamID)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	p.logger.Info("recording row ensured",
		zap.String("recording_id", rec.ID.String()),
		zap.String("stream_id", payload.StreamID.String()))
	return nil
}

func (p *Processor) processMirror(ctx context.Context, job *queue.Job) error {
	var payload queue.RecordingMirrorPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.store.GetByID(ctx, payload.RecordingID)
	if err != nil || rec == nil {
		return fmt.Errorf("recording not found: %s", payload.RecordingID)
	}
	if rec.Status != models.RecordingStatusReady {
		p.logger.Info("recording no longer ready, skipping mirror",
			zap.String("recording_id", rec.ID.String()), zap.String("status", rec.Status))
		return nil
	}
	if rec.MirrorKey != "" {
		p.logger.Info("recording already mirrored", zap.String("recording_id", rec.ID.String()))
		return nil
	}

	// Download from provider (streaming)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.AssetURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.RecordingKey(payload.StreamID.String(), payload.RecordingID.String())

	// Stream upload to S3 (no full buffer)
	s3URL, err := p.s3.Upload(ctx, p.s3.RecordingsBucket(), key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.store.SetMirror(ctx, payload.RecordingID, s3URL, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("recording mirrored",
		zap.String("recording_id", payload.RecordingID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			if ctx.Err() == nil {
				time.Sleep(queue.RetryBackoff)
			}
			continue
		}
	}
}

// LedgerSweeper frees stale pending ledger rows so provider redeliveries can
// re-reserve events abandoned by a crashed handler.
type LedgerSweeper struct {
	guard    ledger.Store
	interval time.Duration
	bound    time.Duration
	logger   *zap.Logger
}

// NewLedgerSweeper creates the sweeper. bound is the age past which a
// pending reservation counts as abandoned.
func NewLedgerSweeper(guard ledger.Store, interval, bound time.Duration, logger *zap.Logger) *LedgerSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerSweeper{guard: guard, interval: interval, bound: bound, logger: logger}
}

// Run sweeps on the configured interval until ctx is done.
func (s *LedgerSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ledger sweeper stopping")
			return
		case <-ticker.C:
			n, err := s.guard.SweepStale(ctx, s.bound)
			if err != nil {
				s.logger.Error("ledger sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Warn("stale pending webhook events released", zap.Int("count", n))
			}
		}
	}
}
