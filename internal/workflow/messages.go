package workflow

import (
	"fmt"
	"github.com/myrjola/casebot/internal/models"
	"strings"
)

const (
	msgIdle            = "No active case. Start a new case when you receive an occurrence."
	msgSendPdf         = "Send the occurrence PDF, or cancel."
	msgPdfUnreadable   = "Could not read the case details from this PDF. Send the occurrence PDF again, or cancel."
	msgPdfEmpty        = "The document is empty. Send the occurrence PDF, or cancel."
	msgCancelled       = "Case creation cancelled."
	msgNotApplicable   = "That action belongs to a case that is no longer active. It was ignored."
	msgFinishFirst     = "A case is already being collected. Finish or discard it before starting a new one."
	msgCollectHelp     = "Send text notes, photos, voice notes or your location. Tap finish when you are done."
	msgSummaryFailed   = "The case summary could not be generated. Continuing without it."
	msgTranscribeFail  = "The voice note was saved but could not be transcribed."
	msgNoPhoto         = "There is no photo to mark as fingerprint in this case."
	msgPhotoNotFound   = "That photo does not belong to the active case."
	msgNotAPhoto       = "Only photos can be marked as fingerprints."
	msgEmptyEvidence   = "Nothing to save: the message was empty."
	msgBadLocation     = "The location is not valid."
	msgPersistence     = "The change could not be saved. Please try again."
	msgCaseUnavailable = "The active case could not be loaded. Please check the case storage."
	msgCaseGone        = "The active case no longer exists or is already finished. Back to idle."
	msgCaseFinished    = "That case has already been finished and can no longer be changed."
)

func idlePrompt(text string) ShowPrompt {
	return ShowPrompt{Text: text, Buttons: []Button{button("Start new case", StartCase{})}}
}

func waitingPrompt(text string) ShowPrompt {
	return ShowPrompt{Text: text, Buttons: []Button{button("Cancel", Cancel{})}}
}

func collectingPrompt(caseID, text string) ShowPrompt {
	return ShowPrompt{Text: text, Buttons: []Button{
		button("Finish collection", RequestFinish{CaseID: caseID}),
		button("Status", ShowStatus{}),
		button("Discard case", RequestDiscard{CaseID: caseID}),
	}}
}

func confirmFinishPrompt(c models.Case) ShowPrompt {
	return ShowPrompt{
		Text: fmt.Sprintf("Finish evidence collection for %s with %d items?", displayID(c), len(c.Evidence)),
		Buttons: []Button{
			button("Yes, finish collection", FinishCollection{CaseID: c.ID}),
			button("No, continue collecting", ShowStatus{}),
		},
	}
}

func confirmDiscardPrompt(c models.Case) ShowPrompt {
	return ShowPrompt{
		Text: fmt.Sprintf("Discard %s and delete all %d collected items? This cannot be undone.",
			displayID(c), len(c.Evidence)),
		Buttons: []Button{
			button("Yes, discard everything", DiscardCase{CaseID: c.ID}),
			button("No, continue collecting", ShowStatus{}),
		},
	}
}

// duplicatePrompt asks what to do with a document whose case already exists. Continuing is offered only while the
// existing case is still open.
func duplicatePrompt(existing models.Case) ShowPrompt {
	var buttons []Button
	if !existing.Finished() {
		buttons = append(buttons, button("Continue evidence collection", ContinueCase{CaseID: existing.ID}))
	}
	buttons = append(buttons,
		button("Overwrite case (delete current data)", OverwriteCase{CaseID: existing.ID}),
		button("Cancel", Cancel{}),
	)
	state := "finished"
	if !existing.Finished() {
		state = "open"
	}
	return ShowPrompt{
		Text: fmt.Sprintf("A case with id %s already exists (%s, %d items). What would you like to do?",
			displayID(existing), state, len(existing.Evidence)),
		Buttons: buttons,
	}
}

func displayID(c models.Case) string {
	if c.DisplayID != "" {
		return c.DisplayID
	}
	return c.ID
}

// statusText renders the pinned status message of a case.
func statusText(c models.Case) string {
	counts := c.CountByKind()
	fingerprints := 0
	for _, item := range c.Evidence {
		if item.Fingerprint() {
			fingerprints++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", displayID(c))
	fmt.Fprintf(&b, "Received: %s\n", c.ReceivedAt.Format("2006-01-02 15:04 MST"))
	if address := addressLine(c.ExtractedFields); address != "" {
		fmt.Fprintf(&b, "Address: %s\n", address)
	}
	fmt.Fprintf(&b, "Notes: %d, photos: %d (fingerprints: %d), voice notes: %d",
		counts[models.KindText], counts[models.KindPhoto], fingerprints, counts[models.KindAudio])
	if c.AttendanceLocation != nil {
		b.WriteString("\nLocation recorded")
	}
	return b.String()
}

func addressLine(f models.ExtractedFields) string {
	parts := make([]string, 0, 3) //nolint:mnd // address, complement, city
	for _, part := range []string{f.Address, f.AddressComplement, f.City} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func savedText(item models.EvidenceItem) string {
	switch item.Kind {
	case models.KindText:
		return fmt.Sprintf("Note %s saved.", item.ID)
	case models.KindPhoto:
		return fmt.Sprintf("Photo %s saved.", item.ID)
	case models.KindAudio:
		if item.Transcript != nil {
			return fmt.Sprintf("Voice note %s saved. Transcript:\n%s", item.ID, *item.Transcript)
		}
		return fmt.Sprintf("Voice note %s saved.", item.ID)
	default:
		return fmt.Sprintf("Evidence %s saved.", item.ID)
	}
}
