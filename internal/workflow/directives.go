package workflow

// Directive is an outbound instruction for the transport to render. Like Event, the set is closed.
type Directive interface {
	isDirective()
}

// Button is an inline choice. Action is the encoded event the transport feeds back when pressed, see
// [EncodeAction] and [ParseAction].
type Button struct {
	Label  string
	Action string
}

// ShowPrompt shows text with optional buttons.
type ShowPrompt struct {
	Text    string
	Buttons []Button
}

// ShowLocation shows a map pin.
type ShowLocation struct {
	Latitude  float64
	Longitude float64
}

// Pin replaces the pinned status message with Text.
type Pin struct {
	Text string
}

// Unpin removes the pinned status message.
type Unpin struct{}

// Warn shows a non-fatal problem.
type Warn struct {
	Text string
}

func (ShowPrompt) isDirective()   {}
func (ShowLocation) isDirective() {}
func (Pin) isDirective()          {}
func (Unpin) isDirective()        {}
func (Warn) isDirective()         {}
