package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/events"
	"github.com/acme/dialburst/internal/playback"
	"github.com/acme/dialburst/internal/registry"
	"github.com/acme/dialburst/internal/repository"
	"github.com/acme/dialburst/internal/telephony"
	"github.com/acme/dialburst/pkg/logger"
)

// Config tunes batch dispatch behaviour.
type Config struct {
	// BaseURL is the externally reachable root for webhook URLs.
	BaseURL string
	// LaunchStagger spaces fan-out task launches to stay under the
	// provider's rate limiter. Politeness, not correctness.
	LaunchStagger time.Duration
}

// Orchestrator accepts batch requests and drives call dispatch. Each batch
// runs on its own goroutine with its own cancellation context, scoped to
// the initiating session, so overlapping batches from different operators
// never interfere.
type Orchestrator struct {
	cfg       Config
	dialer    telephony.Dialer
	store     registry.Store
	library   *assets.Library
	publisher events.Publisher
	history   repository.HistoryRepository
	log       *logger.Logger

	// delayScale converts DelaySeconds to a wait; tests shrink it.
	delayScale time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	batches map[string]map[uuid.UUID]context.CancelFunc
}

// New constructs an orchestrator.
func New(
	cfg Config,
	dialer telephony.Dialer,
	store registry.Store,
	library *assets.Library,
	publisher events.Publisher,
	history repository.HistoryRepository,
	log *logger.Logger,
) *Orchestrator {
	if cfg.LaunchStagger <= 0 {
		cfg.LaunchStagger = 200 * time.Millisecond
	}
	return &Orchestrator{
		cfg:        cfg,
		dialer:     dialer,
		store:      store,
		library:    library,
		publisher:  publisher,
		history:    history,
		log:        log,
		delayScale: time.Second,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		batches:    make(map[string]map[uuid.UUID]context.CancelFunc),
	}
}

// StartBatch validates the request and launches it in the background. The
// returned message is suitable for the immediate acknowledgement.
func (o *Orchestrator) StartBatch(req domain.BatchRequest, sessionToken string) (uuid.UUID, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return uuid.Nil, "", err
	}
	if sessionToken == "" {
		return uuid.Nil, "", fmt.Errorf("orchestrator: session token is required")
	}

	batchID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	o.register(sessionToken, batchID, cancel)

	total := len(req.DestinationNumbers) * req.SimultaneousCount
	go o.runBatch(ctx, batchID, req, sessionToken)

	message := fmt.Sprintf("Initiated %d call(s) to %s", total, strings.Join(req.DestinationNumbers, ", "))
	return batchID, message, nil
}

// StopSession cancels every active batch started by the session. Calls
// already placed with the provider proceed; not-yet-placed dials are
// skipped. Returns the number of batches cancelled.
func (o *Orchestrator) StopSession(sessionToken string) int {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.batches[sessionToken]))
	for _, cancel := range o.batches[sessionToken] {
		cancels = append(cancels, cancel)
	}
	o.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// ActiveBatches reports the number of in-flight batches for the session.
func (o *Orchestrator) ActiveBatches(sessionToken string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.batches[sessionToken])
}

func (o *Orchestrator) register(sessionToken string, batchID uuid.UUID, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.batches[sessionToken] == nil {
		o.batches[sessionToken] = make(map[uuid.UUID]context.CancelFunc)
	}
	o.batches[sessionToken][batchID] = cancel
}

func (o *Orchestrator) unregister(sessionToken string, batchID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.batches[sessionToken][batchID]; ok {
		cancel()
		delete(o.batches[sessionToken], batchID)
		if len(o.batches[sessionToken]) == 0 {
			delete(o.batches, sessionToken)
		}
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, batchID uuid.UUID, req domain.BatchRequest, sessionToken string) {
	defer o.unregister(sessionToken, batchID)

	mode := "sequential"
	if req.SimultaneousCount > 1 {
		mode = "fan-out"
	}

	tracer := otel.Tracer("dialburst.orchestrator")
	sctx, span := tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("batch.id", batchID.String()),
		attribute.String("batch.mode", mode),
		attribute.Int("batch.destinations", len(req.DestinationNumbers)),
		attribute.Int("batch.simultaneous", req.SimultaneousCount),
	))
	defer span.End()

	if err := o.history.RecordBatchStarted(context.WithoutCancel(sctx), repository.BatchRecord{
		ID:             batchID,
		SessionToken:   sessionToken,
		Mode:           mode,
		Destinations:   len(req.DestinationNumbers),
		RequestedCalls: len(req.DestinationNumbers) * req.SimultaneousCount,
		StartedAt:      time.Now().UTC(),
	}); err != nil {
		o.log.Warn("orchestrator: record batch start", zap.Error(err))
	}

	var cancelled bool
	if req.SimultaneousCount > 1 {
		cancelled = o.runFanOut(sctx, batchID, req, sessionToken)
	} else {
		cancelled = o.runSequential(sctx, batchID, req, sessionToken)
	}

	if !cancelled {
		o.publisher.Publish(sessionToken, events.Event{Type: events.TypeAllCallsCompleted})
	}

	if err := o.history.RecordBatchFinished(context.WithoutCancel(sctx), batchID, cancelled, time.Now().UTC()); err != nil {
		o.log.Warn("orchestrator: record batch finish", zap.Error(err))
	}

	o.log.Info("orchestrator: batch finished",
		zap.String("batch_id", batchID.String()),
		zap.String("mode", mode),
		zap.Bool("cancelled", cancelled))
}

// runSequential dials each destination in input order, sleeping between
// destinations but never after the last one.
func (o *Orchestrator) runSequential(ctx context.Context, batchID uuid.UUID, req domain.BatchRequest, sessionToken string) bool {
	delay := time.Duration(req.DelaySeconds) * o.delayScale

	for i, number := range req.DestinationNumbers {
		if ctx.Err() != nil {
			return true
		}

		rec, err := o.createRecord(ctx, batchID, number, number, sessionToken)
		if err != nil {
			o.log.Error("orchestrator: create record", zap.Error(err))
			continue
		}
		o.publish(rec, domain.CallStatusPending, "Waiting to dial")

		o.publish(rec, domain.CallStatusInProgress, "Preparing to call")
		o.dialOne(ctx, rec, req.Playback)

		if i < len(req.DestinationNumbers)-1 {
			if !sleepCtx(ctx, delay) {
				return true
			}
		}
	}
	return ctx.Err() != nil
}

// runFanOut dials one destination simultaneousCount times. All pending
// events, then all preparing events, are published before any dial begins.
func (o *Orchestrator) runFanOut(ctx context.Context, batchID uuid.UUID, req domain.BatchRequest, sessionToken string) bool {
	number := req.DestinationNumbers[0]
	count := req.SimultaneousCount

	records := make([]*domain.CallRecord, 0, count)
	for i := 0; i < count; i++ {
		display := fmt.Sprintf("%s (Call %d/%d)", number, i+1, count)
		rec, err := o.createRecord(ctx, batchID, number, display, sessionToken)
		if err != nil {
			o.log.Error("orchestrator: create record", zap.Error(err))
			continue
		}
		records = append(records, rec)
		o.publish(rec, domain.CallStatusPending, "Waiting to dial")
	}

	for _, rec := range records {
		o.publish(rec, domain.CallStatusInProgress, "Preparing to call")
	}

	var wg sync.WaitGroup
	cancelled := false
	for i, rec := range records {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		wg.Add(1)
		go func(rec *domain.CallRecord) {
			defer wg.Done()
			o.dialOne(ctx, rec, req.Playback)
		}(rec)

		if i < len(records)-1 {
			if !sleepCtx(ctx, o.cfg.LaunchStagger) {
				cancelled = true
				break
			}
		}
	}

	wg.Wait()
	return cancelled || ctx.Err() != nil
}

// dialOne executes the dial step for one record. Failures are recorded on
// the record and never propagate to sibling calls.
func (o *Orchestrator) dialOne(ctx context.Context, rec *domain.CallRecord, cfg domain.PlaybackConfig) {
	tracer := otel.Tracer("dialburst.orchestrator")
	sctx, span := tracer.Start(ctx, "batch.dial", trace.WithAttributes(
		attribute.String("call.id", rec.CallID.String()),
	))
	defer span.End()

	params := playback.Params{
		CallID:           rec.CallID.String(),
		GreetingEnabled:  cfg.GreetingEnabled,
		GreetingText:     cfg.GreetingText,
		Mode:             cfg.Mode,
		AudioFile:        o.resolveAudioFile(cfg),
		TTSProvider:      cfg.TTSProvider,
		Voice:            cfg.ExternalVoice,
		PersistSynthesis: cfg.PersistSynthesis,
	}

	base := strings.TrimRight(o.cfg.BaseURL, "/")
	result, err := o.dialer.PlaceCall(sctx, telephony.PlaceCallRequest{
		To:                rec.Destination,
		AnswerURL:         base + "/webhooks/voice?" + params.Encode().Encode(),
		StatusCallbackURL: base + "/webhooks/status",
	})
	if err != nil {
		span.RecordError(err)
		o.log.Warn("orchestrator: dial failed",
			zap.String("call_id", rec.CallID.String()),
			zap.String("destination", rec.Destination),
			zap.Error(err))
		o.publish(rec, domain.CallStatusFailed, "Error: "+err.Error())
		o.recordAttempt(rec)
		return
	}

	rec.ProviderCallID = result.ProviderCallID
	if err := o.store.AttachProviderID(sctx, rec.CallID, result.ProviderCallID); err != nil {
		o.log.Error("orchestrator: attach provider id", zap.Error(err))
	}
	o.publish(rec, domain.CallStatusInProgress, "Call initiated")
	o.recordAttempt(rec)
}

// HandleProviderStatus processes one status webhook. Unknown provider call
// ids are ignored; the webhook is always acknowledged by the caller.
func (o *Orchestrator) HandleProviderStatus(ctx context.Context, providerCallID, providerStatus string) {
	rec, err := o.store.GetByProviderID(ctx, providerCallID)
	if err != nil {
		o.log.Debug("orchestrator: status for untracked call",
			zap.String("provider_call_id", providerCallID),
			zap.String("status", providerStatus))
		return
	}

	status := domain.MapProviderStatus(providerStatus)
	o.publish(rec, status, providerStatus)
	if status.Terminal() {
		o.recordAttempt(rec)
	}
}

func (o *Orchestrator) createRecord(ctx context.Context, batchID uuid.UUID, number, display, sessionToken string) (*domain.CallRecord, error) {
	now := time.Now().UTC()
	rec := &domain.CallRecord{
		CallID:       uuid.New(),
		BatchID:      batchID,
		Destination:  number,
		Display:      display,
		Status:       domain.CallStatusPending,
		SessionToken: sessionToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.Create(context.WithoutCancel(ctx), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// publish updates the registry and fans the transition out to the session.
func (o *Orchestrator) publish(rec *domain.CallRecord, status domain.CallStatus, message string) {
	rec.Status = status
	rec.Message = message
	if err := o.store.UpdateStatus(context.Background(), rec.CallID, status, message); err != nil {
		o.log.Warn("orchestrator: update record", zap.Error(err))
	}
	o.publisher.Publish(rec.SessionToken, events.Event{
		Type:               events.TypeCallStatus,
		CallID:             rec.CallID.String(),
		PhoneNumberDisplay: rec.Display,
		Status:             string(status),
		Message:            message,
	})
}

func (o *Orchestrator) recordAttempt(rec *domain.CallRecord) {
	if err := o.history.RecordAttempt(context.Background(), repository.AttemptRecord{
		CallID:         rec.CallID,
		BatchID:        rec.BatchID,
		Destination:    rec.Destination,
		ProviderCallID: rec.ProviderCallID,
		Status:         string(rec.Status),
		Message:        rec.Message,
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		o.log.Warn("orchestrator: record attempt", zap.Error(err))
	}
}

// resolveAudioFile picks the concrete file for this dial. Random selection
// is an independent draw per call; a missing library or empty selection
// yields no file, which the document builder announces.
func (o *Orchestrator) resolveAudioFile(cfg domain.PlaybackConfig) string {
	if cfg.Mode == domain.PlaybackTTSOnly {
		return ""
	}
	if cfg.AudioSelection == domain.AudioSpecific {
		return cfg.AudioFile
	}

	files, err := o.library.Snapshot()
	if err != nil {
		o.log.Warn("orchestrator: list audio files", zap.Error(err))
		return ""
	}
	if len(files) == 0 {
		return ""
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return files[o.rng.Intn(len(files))]
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
