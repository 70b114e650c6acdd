package app

import "errors"

var (
	ErrPolicyNotFound     = errors.New("policy not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidPolicy      = errors.New("invalid policy")
	ErrInvalidSubmission  = errors.New("invalid submission")
)
