package models

import "time"

// ChatAssessmentBinding makes an assessment the default for bot commands in a chat.
type ChatAssessmentBinding struct {
	Assessment  string    `json:"assessment"`
	Comment     string    `json:"comment"`
	BindingTime time.Time `json:"binding_time"`
	BoundBy     int64     `json:"bound_by"`
}
