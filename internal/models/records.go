package models

import "time"

// LogName identifies one of the append-only record logs.
type LogName string

const (
	LogPayments      LogName = "payments"
	LogDeployments   LogName = "deployments"
	LogSocialPosts   LogName = "social_posts"
	LogAuditRequests LogName = "audit_requests"
)

// AllLogs lists every log the append store accepts.
var AllLogs = []LogName{LogPayments, LogDeployments, LogSocialPosts, LogAuditRequests}

// Valid reports whether the name is a known log.
func (n LogName) Valid() bool {
	for _, l := range AllLogs {
		if l == n {
			return true
		}
	}
	return false
}

// Entry holds the fields every log record carries. The append store assigns
// both when they are unset.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Stamp sets the record id and timestamp if they are not already present.
func (e *Entry) Stamp(now time.Time, id string) {
	if e.ID == "" {
		e.ID = id
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
}

// PaymentStatus is the outcome recorded for a payment event.
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord is appended to the payments log once per processed payment event.
type PaymentRecord struct {
	Entry
	EventID       string        `json:"event_id"`
	EventType     string        `json:"event_type"`
	SessionID     string        `json:"session_id,omitempty"`
	Subscription  string        `json:"subscription_id,omitempty"`
	PaymentID     string        `json:"payment_id,omitempty"`
	Package       string        `json:"package,omitempty"`
	BusinessName  string        `json:"business_name"`
	Industry      string        `json:"industry"`
	Email         string        `json:"email,omitempty"`
	AmountUSD     float64       `json:"amount_usd"`
	Currency      string        `json:"currency,omitempty"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Renewal       bool          `json:"renewal,omitempty"`
}

// DeploymentStatus is the state recorded for a published build.
type DeploymentStatus string

const (
	DeploymentStatusDeployed DeploymentStatus = "deployed"
)

// DeploymentRecord is appended after a build directory has been published.
type DeploymentRecord struct {
	Entry
	EventID   string           `json:"event_id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Business  string           `json:"business"`
	Slug      string           `json:"slug"`
	Domain    string           `json:"domain"`
	BuildDir  string           `json:"build_dir"`
	Industry  string           `json:"industry"`
	CostUSD   float64          `json:"cost_usd"`
	Status    DeploymentStatus `json:"status"`
}

// SocialPostRecord is appended after a vendor accepted a publish request.
type SocialPostRecord struct {
	Entry
	Platform string `json:"platform"`
	Target   string `json:"target,omitempty"`
	RemoteID string `json:"remote_id"`
	Preview  string `json:"preview"`
	Status   string `json:"status"`
}

// AuditRequestRecord captures a free site-audit lead.
type AuditRequestRecord struct {
	Entry
	Business string `json:"business"`
	Website  string `json:"website,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Industry string `json:"industry,omitempty"`
	Status   string `json:"status"`
}
