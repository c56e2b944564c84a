package mock

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/acme/dialburst/internal/telephony"
)

// Dialer simulates the telephony provider for local development. Accepted
// calls later post fake status callbacks to the configured webhook, so the
// full dial/webhook/event loop can be exercised without provider credentials.
type Dialer struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
	seq int
}

// NewDialer constructs a mock dialer.
func NewDialer() *Dialer {
	return &Dialer{
		successRate: 0.8,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PlaceCall simulates call acceptance.
func (d *Dialer) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	d.mu.Lock()
	d.seq++
	sid := fmt.Sprintf("CAmock%010d", d.seq)
	accepted := d.rng.Float64() <= d.successRate
	ringFor := time.Duration(1+d.rng.Intn(3)) * time.Second
	d.mu.Unlock()

	if !accepted {
		return telephony.PlaceCallResult{}, fmt.Errorf("mock: simulated provider rejection")
	}

	if req.StatusCallbackURL != "" {
		go d.emitStatusUpdates(req.StatusCallbackURL, sid, ringFor)
	}

	return telephony.PlaceCallResult{ProviderCallID: sid, Status: "queued"}, nil
}

// FetchAccount returns a canned account resource.
func (d *Dialer) FetchAccount(ctx context.Context) (telephony.Account, error) {
	return telephony.Account{
		SID:          "ACmock",
		FriendlyName: "Mock Provider Account",
		Status:       "active",
		Type:         "Trial",
	}, nil
}

func (d *Dialer) emitStatusUpdates(callbackURL, sid string, ringFor time.Duration) {
	for _, step := range []struct {
		after  time.Duration
		status string
	}{
		{500 * time.Millisecond, "ringing"},
		{ringFor, "in-progress"},
		{2 * time.Second, "completed"},
	} {
		time.Sleep(step.after)
		form := url.Values{}
		form.Set("CallSid", sid)
		form.Set("CallStatus", step.status)
		resp, err := http.PostForm(callbackURL, form)
		if err != nil {
			return
		}
		resp.Body.Close()
	}
}
