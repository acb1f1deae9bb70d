package errors

// Failure taxonomy of the case workflow. Components wrap these with Wrap so that callers can branch on
// the category with Is while the log keeps the annotated context.
var (
	// ErrExtraction means the intake document could not be parsed into case fields.
	ErrExtraction = NewSentinel("extraction failed")
	// ErrService means an external service (summarization, transcription) failed or timed out.
	ErrService = NewSentinel("service unavailable")
	// ErrConcurrencyViolation means an event targeted a stale case or is illegal in the current state.
	ErrConcurrencyViolation = NewSentinel("event not applicable")
	// ErrPersistence means an atomic write could not complete.
	ErrPersistence = NewSentinel("persistence failed")
	// ErrStateCorruption means the persisted application state could not be read back.
	ErrStateCorruption = NewSentinel("state corrupted")
	// ErrNotFound means the referenced case or evidence does not exist.
	ErrNotFound = NewSentinel("not found")
	// ErrInvalidEvidence means an evidence payload or reference failed validation.
	ErrInvalidEvidence = NewSentinel("invalid evidence")
	// ErrCaseFinished means a mutation targeted a case whose collection has finished.
	ErrCaseFinished = NewSentinel("case collection finished")
)
