package models

import "time"

// AuditLog records every admin action that moves money outside the normal
// user-initiated flow. Writing one is part of the remediation operation, not
// optional logging.
type AuditLog struct {
	ID          int       `json:"id"`
	ActorID     int       `json:"actor_id"`
	Action      string    `json:"action"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	BeforeValue string    `json:"before_value,omitempty"`
	AfterValue  string    `json:"after_value,omitempty"`
	RiskLevel   string    `json:"risk_level"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)
