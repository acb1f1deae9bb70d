// Package evidence turns raw evidence payloads into validated evidence items for a case.
package evidence

import (
	"fmt"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const idPrefix = "ev-"

// Ingestor validates payloads and assigns evidence ids in arrival order. It never mutates the case; the caller
// appends the produced item through the case store.
type Ingestor struct {
	now func() time.Time
}

// NewIngestor creates an Ingestor stamping items with now, usually time.Now.
func NewIngestor(now func() time.Time) *Ingestor {
	return &Ingestor{now: now}
}

// Text builds a text note.
func (in *Ingestor) Text(c *models.Case, content string) (models.EvidenceItem, error) {
	if err := writable(c); err != nil {
		return models.EvidenceItem{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.EvidenceItem{}, errors.Wrap(errors.ErrInvalidEvidence, "empty text note")
	}
	return models.NewTextNote(NextID(c), in.now(), content), nil
}

// Photo builds a photo item stored under photos/ named by its id.
func (in *Ingestor) Photo(c *models.Case, data []byte) (models.EvidenceItem, error) {
	if err := writable(c); err != nil {
		return models.EvidenceItem{}, err
	}
	if len(data) == 0 {
		return models.EvidenceItem{}, errors.Wrap(errors.ErrInvalidEvidence, "empty photo")
	}
	id := NextID(c)
	return models.NewPhoto(id, in.now(), blobstore.EvidencePath(blobstore.PhotosDir, id, photoExt(data))), nil
}

// Audio builds an audio item stored under audio/ named by its id. transcript is nil when transcription failed.
func (in *Ingestor) Audio(c *models.Case, data []byte, transcript *string) (models.EvidenceItem, error) {
	if err := writable(c); err != nil {
		return models.EvidenceItem{}, err
	}
	if len(data) == 0 {
		return models.EvidenceItem{}, errors.Wrap(errors.ErrInvalidEvidence, "empty audio")
	}
	id := NextID(c)
	return models.NewAudio(id, in.now(), blobstore.EvidencePath(blobstore.AudioDir, id, audioExt(data)), transcript), nil
}

// Location builds the attendance location stamped with the current time.
func (in *Ingestor) Location(c *models.Case, latitude, longitude float64) (models.Location, error) {
	if err := writable(c); err != nil {
		return models.Location{}, err
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return models.Location{}, errors.Wrap(errors.ErrInvalidEvidence, "coordinates out of range",
			slog.Float64("latitude", latitude), slog.Float64("longitude", longitude))
	}
	now := in.now()
	return models.Location{Latitude: latitude, Longitude: longitude, RecordedAt: &now}, nil
}

// FingerprintTarget resolves which photo of the case a fingerprint tag applies to. An empty photoID means the
// most recently appended photo.
func (in *Ingestor) FingerprintTarget(c *models.Case, photoID string) (string, error) {
	if err := writable(c); err != nil {
		return "", err
	}
	if photoID == "" {
		last, ok := c.LastPhoto()
		if !ok {
			return "", errors.Wrap(errors.ErrNotFound, "no photo to mark", slog.String("case_id", c.ID))
		}
		return last.ID, nil
	}
	idx, ok := c.FindEvidence(photoID)
	if !ok {
		return "", errors.Wrap(errors.ErrNotFound, "photo not in case",
			slog.String("case_id", c.ID), slog.String("evidence_id", photoID))
	}
	if c.Evidence[idx].Kind != models.KindPhoto {
		return "", errors.Wrap(errors.ErrInvalidEvidence, "only photos can be fingerprints",
			slog.String("evidence_id", photoID))
	}
	return photoID, nil
}

// NextID returns the id following the highest evidence id of the case, e.g., ev-0003 after ev-0002.
func NextID(c *models.Case) string {
	highest := 0
	for _, item := range c.Evidence {
		if n, err := strconv.Atoi(strings.TrimPrefix(item.ID, idPrefix)); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%04d", idPrefix, highest+1)
}

func writable(c *models.Case) error {
	if c.Finished() {
		return errors.Wrap(errors.ErrCaseFinished, "case is closed", slog.String("case_id", c.ID))
	}
	return nil
}

func photoExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func audioExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wave":
		return ".wav"
	default:
		// Telegram voice notes are Ogg Opus.
		return ".ogg"
	}
}
