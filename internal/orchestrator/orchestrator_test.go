package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/events"
	memstore "github.com/acme/dialburst/internal/registry/memory"
	"github.com/acme/dialburst/internal/repository"
	"github.com/acme/dialburst/internal/telephony"
	"github.com/acme/dialburst/pkg/logger"
)

type fakeDialer struct {
	mu     sync.Mutex
	reqs   []telephony.PlaceCallRequest
	failTo string
	seq    int
}

func (d *fakeDialer) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	if d.failTo != "" && req.To == d.failTo {
		return telephony.PlaceCallResult{}, errors.New("number unreachable")
	}
	d.seq++
	return telephony.PlaceCallResult{ProviderCallID: fmt.Sprintf("CA%010d", d.seq), Status: "queued"}, nil
}

func (d *fakeDialer) FetchAccount(ctx context.Context) (telephony.Account, error) {
	return telephony.Account{SID: "ACfake"}, nil
}

func (d *fakeDialer) requests() []telephony.PlaceCallRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]telephony.PlaceCallRequest, len(d.reqs))
	copy(out, d.reqs)
	return out
}

type published struct {
	session string
	ev      events.Event
}

type fakePublisher struct {
	mu        sync.Mutex
	records   []published
	completed chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{completed: make(chan struct{}, 1)}
}

func (p *fakePublisher) Publish(sessionToken string, ev events.Event) {
	p.mu.Lock()
	p.records = append(p.records, published{session: sessionToken, ev: ev})
	p.mu.Unlock()
	if ev.Type == events.TypeAllCallsCompleted {
		select {
		case p.completed <- struct{}{}:
		default:
		}
	}
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]published, len(p.records))
	copy(out, p.records)
	return out
}

func (p *fakePublisher) waitCompleted(t *testing.T) {
	t.Helper()
	select {
	case <-p.completed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch completion event")
	}
}

func newTestOrchestrator(t *testing.T, dialer telephony.Dialer) (*Orchestrator, *fakePublisher) {
	t.Helper()
	lib, err := assets.NewLibrary(t.TempDir(), "", "http://example.com", "/audio")
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	pub := newFakePublisher()
	orch := New(
		Config{BaseURL: "http://example.com", LaunchStagger: time.Millisecond},
		dialer,
		memstore.NewStore(time.Hour),
		lib,
		pub,
		repository.NoopHistory{},
		logger.Nop(),
	)
	orch.delayScale = time.Millisecond
	return orch, pub
}

func waitIdle(t *testing.T, orch *Orchestrator, session string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if orch.ActiveBatches(session) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for batches to finish")
}

func TestStartBatchRejectsEmptyRequest(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeDialer{})

	if _, _, err := orch.StartBatch(domain.BatchRequest{}, "session"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSequentialDialsInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	orch, pub := newTestOrchestrator(t, dialer)

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001", "+15551230002"},
		DelaySeconds:       1,
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	reqs := dialer.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 dials, got %d", len(reqs))
	}
	if reqs[0].To != "+15551230001" || reqs[1].To != "+15551230002" {
		t.Fatalf("dials out of order: %+v", reqs)
	}

	// Each call walks pending, preparing, initiated before the next starts.
	var statuses []string
	for _, p := range pub.all() {
		if p.ev.Type == events.TypeCallStatus {
			statuses = append(statuses, p.ev.Message)
		}
	}
	want := []string{"Waiting to dial", "Preparing to call", "Call initiated", "Waiting to dial", "Preparing to call", "Call initiated"}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d status events, got %d: %v", len(want), len(statuses), statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], statuses[i])
		}
	}
}

func TestSequentialCompletionEventPublishedOnce(t *testing.T) {
	orch, pub := newTestOrchestrator(t, &fakeDialer{})

	req := domain.BatchRequest{DestinationNumbers: []string{"+15551230001"}}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)
	waitIdle(t, orch, "session")

	count := 0
	for _, p := range pub.all() {
		if p.ev.Type == events.TypeAllCallsCompleted {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one completion event, got %d", count)
	}
}

func TestFanOutPublishesAllPendingBeforeAnyDial(t *testing.T) {
	dialer := &fakeDialer{}
	orch, pub := newTestOrchestrator(t, dialer)

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001"},
		SimultaneousCount:  5,
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	if got := len(dialer.requests()); got != 5 {
		t.Fatalf("expected 5 dials, got %d", got)
	}

	lastPending, firstPreparing := -1, -1
	for i, p := range pub.all() {
		switch p.ev.Message {
		case "Waiting to dial":
			lastPending = i
		case "Preparing to call":
			if firstPreparing < 0 {
				firstPreparing = i
			}
		}
	}
	if lastPending < 0 || firstPreparing < 0 {
		t.Fatal("missing pending or preparing events")
	}
	if lastPending > firstPreparing {
		t.Fatalf("pending event at %d published after first preparing at %d", lastPending, firstPreparing)
	}
}

func TestFanOutDisplaysCallIndex(t *testing.T) {
	orch, pub := newTestOrchestrator(t, &fakeDialer{})

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001"},
		SimultaneousCount:  3,
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	seen := map[string]bool{}
	for _, p := range pub.all() {
		if p.ev.PhoneNumberDisplay != "" {
			seen[p.ev.PhoneNumberDisplay] = true
		}
	}
	for i := 1; i <= 3; i++ {
		display := fmt.Sprintf("+15551230001 (Call %d/3)", i)
		if !seen[display] {
			t.Fatalf("missing display %q in %v", display, seen)
		}
	}
}

func TestDialFailureDoesNotAbortSiblings(t *testing.T) {
	dialer := &fakeDialer{failTo: "+15551230002"}
	orch, pub := newTestOrchestrator(t, dialer)

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001", "+15551230002", "+15551230003"},
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	if got := len(dialer.requests()); got != 3 {
		t.Fatalf("expected all 3 dials attempted, got %d", got)
	}

	failed := 0
	for _, p := range pub.all() {
		if p.ev.Status == string(domain.CallStatusFailed) {
			failed++
			if !strings.HasPrefix(p.ev.Message, "Error: ") {
				t.Fatalf("expected error message prefix, got %q", p.ev.Message)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed event, got %d", failed)
	}
}

func TestStopSessionSkipsRemainingDials(t *testing.T) {
	dialer := &fakeDialer{}
	orch, pub := newTestOrchestrator(t, dialer)
	orch.delayScale = time.Hour

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001", "+15551230002", "+15551230003"},
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(dialer.requests()) == 0 {
		time.Sleep(time.Millisecond)
	}
	if len(dialer.requests()) == 0 {
		t.Fatal("first dial never happened")
	}

	if cancelled := orch.StopSession("session"); cancelled != 1 {
		t.Fatalf("expected 1 cancelled batch, got %d", cancelled)
	}
	waitIdle(t, orch, "session")

	if got := len(dialer.requests()); got != 1 {
		t.Fatalf("expected remaining dials skipped, got %d dials", got)
	}
	for _, p := range pub.all() {
		if p.ev.Type == events.TypeAllCallsCompleted {
			t.Fatal("completion event published for cancelled batch")
		}
	}
}

func TestStopSessionLeavesOtherSessionsRunning(t *testing.T) {
	orch, pub := newTestOrchestrator(t, &fakeDialer{})

	req := domain.BatchRequest{DestinationNumbers: []string{"+15551230001"}}
	if _, _, err := orch.StartBatch(req, "session-a"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	if cancelled := orch.StopSession("session-b"); cancelled != 0 {
		t.Fatalf("expected no cancellations for other session, got %d", cancelled)
	}
	pub.waitCompleted(t)
}

func TestAnswerURLCarriesPlaybackParams(t *testing.T) {
	dialer := &fakeDialer{}
	orch, pub := newTestOrchestrator(t, dialer)

	req := domain.BatchRequest{
		DestinationNumbers: []string{"+15551230001"},
		Playback: domain.PlaybackConfig{
			Mode:            domain.PlaybackTTSOnly,
			GreetingEnabled: true,
			GreetingText:    "Hello",
		},
	}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	reqs := dialer.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 dial, got %d", len(reqs))
	}
	url := reqs[0].AnswerURL
	for _, fragment := range []string{"/webhooks/voice?", "call_id=", "mode=tts_only", "greeting=true"} {
		if !strings.Contains(url, fragment) {
			t.Fatalf("answer URL missing %q: %s", fragment, url)
		}
	}
	if reqs[0].StatusCallbackURL != "http://example.com/webhooks/status" {
		t.Fatalf("unexpected status callback URL %q", reqs[0].StatusCallbackURL)
	}
}

func TestHandleProviderStatusPublishesMappedStatus(t *testing.T) {
	dialer := &fakeDialer{}
	orch, pub := newTestOrchestrator(t, dialer)

	req := domain.BatchRequest{DestinationNumbers: []string{"+15551230001"}}
	if _, _, err := orch.StartBatch(req, "session"); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	pub.waitCompleted(t)

	orch.HandleProviderStatus(context.Background(), "CA0000000001", "busy")

	var last published
	for _, p := range pub.all() {
		if p.ev.Type == events.TypeCallStatus {
			last = p
		}
	}
	if last.ev.Status != string(domain.CallStatusFailed) {
		t.Fatalf("expected busy mapped to failed, got %q", last.ev.Status)
	}
	if last.session != "session" {
		t.Fatalf("status published to wrong session %q", last.session)
	}
}

func TestHandleProviderStatusIgnoresUnknownCall(t *testing.T) {
	orch, pub := newTestOrchestrator(t, &fakeDialer{})

	before := len(pub.all())
	orch.HandleProviderStatus(context.Background(), "CAunknown", "completed")
	if got := len(pub.all()); got != before {
		t.Fatalf("expected no events for unknown call, got %d new", got-before)
	}
}
