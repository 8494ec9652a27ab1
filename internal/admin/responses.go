package admin

import (
	"time"

	"taxgate/pkg/platform/audit"
)

// RecordResponse is the HTTP response DTO for a single audit record.
type RecordResponse struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	PrincipalID  string    `json:"principal_id,omitempty"`
	Role         string    `json:"role,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	OrgID        string    `json:"org_id,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// RecordsResponse wraps a page of audit records.
type RecordsResponse struct {
	Records []RecordResponse `json:"records"`
	Total   int              `json:"total"`
}

func toRecordsResponse(records []audit.Record) RecordsResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	return RecordsResponse{Records: out, Total: len(out)}
}

func toRecordResponse(rec audit.Record) RecordResponse {
	resp := RecordResponse{
		ID:           rec.ID.String(),
		Timestamp:    rec.Timestamp,
		Role:         rec.Role,
		Action:       rec.Action,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		Outcome:      string(rec.Outcome),
		Reason:       rec.Reason,
		RequestID:    rec.RequestID,
		ClientIP:     rec.ClientIP,
		UserAgent:    rec.UserAgent,
	}
	if !rec.PrincipalID.IsNil() {
		resp.PrincipalID = rec.PrincipalID.String()
	}
	if !rec.OrgID.IsNil() {
		resp.OrgID = rec.OrgID.String()
	}
	return resp
}
