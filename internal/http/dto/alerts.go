package dto

// ReconcileResponse acknowledges a processed notification.
type ReconcileResponse struct {
	Status   string `json:"status"`
	Outcome  string `json:"outcome"`
	Title    string `json:"title,omitempty"`
	TaskPHID string `json:"task_phid,omitempty"`
	TaskID   int    `json:"task_id,omitempty"`
}
