package models

import (
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"strings"
	"time"
)

// EvidenceKind discriminates the evidence variants.
type EvidenceKind string

const (
	KindText  EvidenceKind = "text"
	KindPhoto EvidenceKind = "photo"
	KindAudio EvidenceKind = "audio"
)

// EvidenceItem is one piece of collected evidence. Content is only used by text notes, StoragePath by photos
// and audio, IsFingerprint by photos and Transcript by audio.
type EvidenceItem struct {
	ID            string       `json:"id"`
	Kind          EvidenceKind `json:"kind"`
	Timestamp     time.Time    `json:"timestamp"`
	Content       string       `json:"content,omitempty"`
	StoragePath   string       `json:"storage_path,omitempty"`
	IsFingerprint *bool        `json:"is_fingerprint,omitempty"`
	Transcript    *string      `json:"transcript,omitempty"`
}

// NewTextNote builds a text evidence item.
func NewTextNote(id string, ts time.Time, content string) EvidenceItem {
	return EvidenceItem{ID: id, Kind: KindText, Timestamp: ts, Content: content}
}

// NewPhoto builds a photo evidence item stored at storagePath.
func NewPhoto(id string, ts time.Time, storagePath string) EvidenceItem {
	fingerprint := false
	return EvidenceItem{ID: id, Kind: KindPhoto, Timestamp: ts, StoragePath: storagePath, IsFingerprint: &fingerprint}
}

// NewAudio builds an audio evidence item stored at storagePath. transcript is nil when transcription failed.
func NewAudio(id string, ts time.Time, storagePath string, transcript *string) EvidenceItem {
	return EvidenceItem{ID: id, Kind: KindAudio, Timestamp: ts, StoragePath: storagePath, Transcript: transcript}
}

// Fingerprint reports whether the item is a photo marked as fingerprint.
func (e EvidenceItem) Fingerprint() bool {
	return e.Kind == KindPhoto && e.IsFingerprint != nil && *e.IsFingerprint
}

// Validate checks that the variant specific fields are consistent with the kind.
func (e EvidenceItem) Validate() error {
	if e.ID == "" {
		return errors.Wrap(errors.ErrInvalidEvidence, "evidence without id")
	}
	attrs := []slog.Attr{slog.String("evidence_id", e.ID), slog.String("kind", string(e.Kind))}
	switch e.Kind {
	case KindText:
		if strings.TrimSpace(e.Content) == "" {
			return errors.Wrap(errors.ErrInvalidEvidence, "empty text note", attrs...)
		}
	case KindPhoto, KindAudio:
		if e.StoragePath == "" {
			return errors.Wrap(errors.ErrInvalidEvidence, "binary evidence without storage path", attrs...)
		}
	default:
		return errors.Wrap(errors.ErrInvalidEvidence, "unknown evidence kind", attrs...)
	}
	return nil
}
