package domain

import "time"

// DetectedIssue is one civic issue the vision model found in a photo.
// Category is always normalized before it leaves the classifier.
type DetectedIssue struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// IssueReport is the record created once at submission time. The store may
// append status history afterwards, but the submitted fields are immutable.
type IssueReport struct {
	ID             string          `json:"id"`
	Image          []byte          `json:"-"`
	ImageMimeType  string          `json:"image_mime_type,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Comments       string          `json:"comments"`
	Categories     []string        `json:"categories"`
	DetectedIssues []DetectedIssue `json:"detected_issues"`
	Priority       string          `json:"priority"`
	Status         string          `json:"status"`
	Location       *Location       `json:"location,omitempty"`
	UserID         string          `json:"user_id,omitempty"`

	// Assignment fields are empty until an admin (or the sweep) commits one.
	DepartmentID     string  `json:"department_id,omitempty"`
	AssignConfidence float64 `json:"assign_confidence,omitempty"`
	AssignReasoning  string  `json:"assign_reasoning,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusUpdate is one entry in a report's status history.
type StatusUpdate struct {
	ID        int64     `json:"id"`
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusSubmitted    = "submitted"
	StatusAcknowledged = "acknowledged"
	StatusInProgress   = "in-progress"
	StatusUnderReview  = "under-review"
	StatusResolved     = "resolved"
	StatusRejected     = "rejected"
	StatusClosed       = "closed"
)

var validStatuses = map[string]bool{
	StatusSubmitted:    true,
	StatusAcknowledged: true,
	StatusInProgress:   true,
	StatusUnderReview:  true,
	StatusResolved:     true,
	StatusRejected:     true,
	StatusClosed:       true,
}

func ValidStatus(s string) bool { return validStatuses[s] }

// IsOpen reports whether a report still counts toward department workload.
func IsOpen(status string) bool {
	switch status {
	case StatusResolved, StatusRejected, StatusClosed:
		return false
	}
	return true
}

const (
	PriorityLow       = "low"
	PriorityMedium    = "medium"
	PriorityHigh      = "high"
	PriorityUrgent    = "urgent"
	PriorityEmergency = "emergency"
)

var validPriorities = map[string]bool{
	PriorityLow:       true,
	PriorityMedium:    true,
	PriorityHigh:      true,
	PriorityUrgent:    true,
	PriorityEmergency: true,
}

func ValidPriority(p string) bool { return validPriorities[p] }
