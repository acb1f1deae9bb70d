package workflow

// Event is an inbound instruction from the transport. The set of events is closed: only the types in this file
// implement it.
//
// Case scoped events carry the id of the case they were produced for. An empty CaseID means the current case,
// which is what free-form messages (text, photos, voice) use. Buttons always carry the case id so that presses on
// messages from an earlier case can be recognized as stale.
type Event interface {
	// Name identifies the event in logs.
	Name() string
	isEvent()
}

// StartCase begins a new case from Idle.
type StartCase struct{}

// Cancel aborts waiting for the intake document.
type Cancel struct{}

// DocumentReceived delivers the intake document.
type DocumentReceived struct {
	Data     []byte
	Filename string
}

// TextReceived delivers a text note.
type TextReceived struct {
	CaseID string
	Text   string
}

// PhotoReceived delivers photo bytes.
type PhotoReceived struct {
	CaseID string
	Data   []byte
}

// VoiceReceived delivers voice note bytes.
type VoiceReceived struct {
	CaseID string
	Data   []byte
}

// LocationReceived delivers the attendance location.
type LocationReceived struct {
	CaseID    string
	Latitude  float64
	Longitude float64
}

// MarkFingerprint tags a photo as a fingerprint. An empty PhotoID targets the latest photo.
type MarkFingerprint struct {
	CaseID  string
	PhotoID string
}

// RequestFinish asks for confirmation before finishing the collection.
type RequestFinish struct {
	CaseID string
}

// FinishCollection ends the evidence collection of the active case.
type FinishCollection struct {
	CaseID string
}

// RequestDiscard asks for confirmation before discarding the active case.
type RequestDiscard struct {
	CaseID string
}

// DiscardCase deletes the active case and everything collected for it.
type DiscardCase struct {
	CaseID string
}

// ContinueCase resumes collection of the existing case matching the intake document.
type ContinueCase struct {
	CaseID string
}

// OverwriteCase replaces the existing case matching the intake document with a new one.
type OverwriteCase struct {
	CaseID string
}

// ShowStatus asks for the current status. Valid in every mode.
type ShowStatus struct{}

func (StartCase) Name() string        { return "start_case" }
func (Cancel) Name() string           { return "cancel" }
func (DocumentReceived) Name() string { return "document_received" }
func (TextReceived) Name() string     { return "text_received" }
func (PhotoReceived) Name() string    { return "photo_received" }
func (VoiceReceived) Name() string    { return "voice_received" }
func (LocationReceived) Name() string { return "location_received" }
func (MarkFingerprint) Name() string  { return "mark_fingerprint" }
func (RequestFinish) Name() string    { return "request_finish" }
func (FinishCollection) Name() string { return "finish_collection" }
func (RequestDiscard) Name() string   { return "request_discard" }
func (DiscardCase) Name() string      { return "discard_case" }
func (ContinueCase) Name() string     { return "continue_case" }
func (OverwriteCase) Name() string    { return "overwrite_case" }
func (ShowStatus) Name() string       { return "show_status" }

func (StartCase) isEvent()        {}
func (Cancel) isEvent()           {}
func (DocumentReceived) isEvent() {}
func (TextReceived) isEvent()     {}
func (PhotoReceived) isEvent()    {}
func (VoiceReceived) isEvent()    {}
func (LocationReceived) isEvent() {}
func (MarkFingerprint) isEvent()  {}
func (RequestFinish) isEvent()    {}
func (FinishCollection) isEvent() {}
func (RequestDiscard) isEvent()   {}
func (DiscardCase) isEvent()      {}
func (ContinueCase) isEvent()     {}
func (OverwriteCase) isEvent()    {}
func (ShowStatus) isEvent()       {}

// targetCase returns the case id a case scoped event was produced for.
func targetCase(ev Event) (string, bool) {
	switch e := ev.(type) {
	case TextReceived:
		return e.CaseID, true
	case PhotoReceived:
		return e.CaseID, true
	case VoiceReceived:
		return e.CaseID, true
	case LocationReceived:
		return e.CaseID, true
	case MarkFingerprint:
		return e.CaseID, true
	case RequestFinish:
		return e.CaseID, true
	case FinishCollection:
		return e.CaseID, true
	case RequestDiscard:
		return e.CaseID, true
	case DiscardCase:
		return e.CaseID, true
	case StartCase, Cancel, DocumentReceived, ContinueCase, OverwriteCase, ShowStatus:
		// The duplicate decisions name an existing case that is not active yet; the engine checks them against
		// the held document instead.
		return "", false
	default:
		return "", false
	}
}
