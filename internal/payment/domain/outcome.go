package domain

const (
	OutcomeApplied          = "applied"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeNotApproved      = "not_approved"
	OutcomeBadReference     = "bad_reference"
	OutcomeInProgress       = "in_progress"
	OutcomeIgnored          = "ignored"
)

// Outcome is the expected result of processing one payment notification.
// Unexpected failures are returned as errors instead.
type Outcome struct {
	Status    string `json:"status"`
	Kind      string `json:"kind,omitempty"`
	PaymentID string `json:"paymentId"`
	TenantID  string `json:"tenantId,omitempty"`
	EventType string `json:"eventType,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (o Outcome) Applied() bool {
	return o.Status == OutcomeApplied
}
