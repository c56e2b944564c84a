package telephony

import "context"

// PlaceCallRequest carries everything the provider needs to start a call.
type PlaceCallRequest struct {
	// To is the destination number in E.164 format.
	To string
	// AnswerURL is fetched by the provider at call-answer time for the
	// response document.
	AnswerURL string
	// StatusCallbackURL receives provider state-change webhooks.
	StatusCallbackURL string
}

// PlaceCallResult is the provider's acceptance of a call.
type PlaceCallResult struct {
	// ProviderCallID correlates later webhook events with this call.
	ProviderCallID string
	// Status is the provider's initial call state (e.g. "queued").
	Status string
}

// Account is a lightweight view of the provider account, used by the
// account inspection endpoint.
type Account struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
}

// Dialer abstracts the outbound telephony integration.
type Dialer interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
	FetchAccount(ctx context.Context) (Account, error)
}
