package poi

import "time"

// Status is the moderation state of a point of interest.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known moderation state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// TableName is the audit table identifier for POI records.
const TableName = "point_of_interests"

// POI is a point of interest in the directory. Only the moderation
// operations mutate Status, ApprovedBy and IsVerify; every other code path
// treats them as read-only.
type POI struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Address     string    `json:"address,omitempty"`
	Quartier    string    `json:"quartier,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      Status    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	IsVerify    bool      `json:"is_verify"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput carries the fields a collector submits for a new POI.
type CreateInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Address     string  `json:"address"`
	Quartier    string  `json:"quartier"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Update carries optional field changes; nil pointers leave fields untouched.
// Moderation state is deliberately absent, it only moves through transitions.
type Update struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Address     *string  `json:"address"`
	Quartier    *string  `json:"quartier"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   Status
	Category string
	Quartier string
	Limit    int
	Offset   int
}

// Stats summarizes the moderation queue.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
