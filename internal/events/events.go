package events

// Type enumerates the live event kinds sent to the browser.
type Type string

const (
	TypeCallStatus        Type = "call_status"
	TypeAllCallsCompleted Type = "all_calls_completed"
)

// Event is one live update addressed to a single operator session.
type Event struct {
	Type               Type   `json:"type"`
	CallID             string `json:"call_id,omitempty"`
	PhoneNumberDisplay string `json:"phone_number_display,omitempty"`
	Status             string `json:"status,omitempty"`
	Message            string `json:"message,omitempty"`
}

// Publisher delivers events to the session that started the batch.
type Publisher interface {
	Publish(sessionToken string, ev Event)
}
