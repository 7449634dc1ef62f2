package models

import "fmt"

// TransientInfraError marks a failure as retry-worthy. Only the compositing
// path retries; scene generation failures stay terminal.
type TransientInfraError struct {
	Op  string
	Err error
}

func (e *TransientInfraError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientInfraError) Unwrap() error {
	return e.Err
}

// InvalidSceneConfigError rejects a job at creation time, before anything is
// persisted or dispatched.
type InvalidSceneConfigError struct {
	SceneOrder int
	Reason     string
}

func (e *InvalidSceneConfigError) Error() string {
	return fmt.Sprintf("invalid scene config at order %d: %s", e.SceneOrder, e.Reason)
}

// ExternalServiceError is a prediction submit/poll failure. Terminal for the
// owning job.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("prediction service %s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// SceneGenerationError is the terminal job error for a failed scene.
type SceneGenerationError struct {
	SceneOrder int
	Reason     string
}

func (e *SceneGenerationError) Error() string {
	return fmt.Sprintf("scene %d generation failed: %s", e.SceneOrder, e.Reason)
}

// CompositingError is the terminal job error after compositing retries are
// exhausted or a fatal failure is hit.
type CompositingError struct {
	Reason string
}

func (e *CompositingError) Error() string {
	return fmt.Sprintf("compositing failed: %s", e.Reason)
}

// SignatureVerificationError rejects an inbound webhook before any state is
// touched.
type SignatureVerificationError struct {
	Reason string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %s", e.Reason)
}
