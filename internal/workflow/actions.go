package workflow

import (
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"strings"
)

var ErrUnknownAction = errors.NewSentinel("unknown action")

// Action verbs. They are short because Telegram limits callback data to 64 bytes.
const (
	actionStart         = "start"
	actionCancel        = "cancel"
	actionStatus        = "status"
	actionRequestFinish = "fin?"
	actionFinish        = "fin"
	actionRequestDrop   = "del?"
	actionDrop          = "del"
	actionFingerprint   = "fp"
	actionContinue      = "cont"
	actionOverwrite     = "ovw"
)

// EncodeAction encodes a button event as callback data. Events that cannot be attached to a button return "".
func EncodeAction(ev Event) string {
	switch e := ev.(type) {
	case StartCase:
		return actionStart
	case Cancel:
		return actionCancel
	case ShowStatus:
		return actionStatus
	case RequestFinish:
		return actionRequestFinish + ":" + e.CaseID
	case FinishCollection:
		return actionFinish + ":" + e.CaseID
	case RequestDiscard:
		return actionRequestDrop + ":" + e.CaseID
	case DiscardCase:
		return actionDrop + ":" + e.CaseID
	case MarkFingerprint:
		return actionFingerprint + ":" + e.CaseID + ":" + e.PhotoID
	case ContinueCase:
		return actionContinue + ":" + e.CaseID
	case OverwriteCase:
		return actionOverwrite + ":" + e.CaseID
	case DocumentReceived, TextReceived, PhotoReceived, VoiceReceived, LocationReceived:
		return ""
	default:
		return ""
	}
}

// ParseAction decodes callback data produced by EncodeAction.
func ParseAction(data string) (Event, error) {
	parts := strings.Split(data, ":")
	verb, args := parts[0], parts[1:]
	switch {
	case verb == actionStart && len(args) == 0:
		return StartCase{}, nil
	case verb == actionCancel && len(args) == 0:
		return Cancel{}, nil
	case verb == actionStatus && len(args) == 0:
		return ShowStatus{}, nil
	case verb == actionRequestFinish && len(args) == 1:
		return RequestFinish{CaseID: args[0]}, nil
	case verb == actionFinish && len(args) == 1:
		return FinishCollection{CaseID: args[0]}, nil
	case verb == actionRequestDrop && len(args) == 1:
		return RequestDiscard{CaseID: args[0]}, nil
	case verb == actionDrop && len(args) == 1:
		return DiscardCase{CaseID: args[0]}, nil
	case verb == actionContinue && len(args) == 1:
		return ContinueCase{CaseID: args[0]}, nil
	case verb == actionOverwrite && len(args) == 1:
		return OverwriteCase{CaseID: args[0]}, nil
	case verb == actionFingerprint && len(args) == 2: //nolint:mnd // case id and photo id
		return MarkFingerprint{CaseID: args[0], PhotoID: args[1]}, nil
	default:
		return nil, errors.Wrap(ErrUnknownAction, "parse action", slog.String("data", data))
	}
}

func button(label string, ev Event) Button {
	return Button{Label: label, Action: EncodeAction(ev)}
}
