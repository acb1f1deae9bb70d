// Package pdfextract reads the occurrence fields out of an intake PDF.
package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ledongthuc/pdf"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Extractor implements the intake document extraction on top of the PDF text layer.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With(slog.String("source", "PdfExtractor"))}
}

// Extract returns the fields found in the PDF. A document without any text layer is an extraction error, while
// missing individual fields are not.
func (e *Extractor) Extract(ctx context.Context, data []byte) (models.ExtractedFields, error) {
	text, err := plainText(data)
	if err != nil {
		return models.ExtractedFields{}, errors.Join(errors.ErrExtraction, err)
	}
	if err = ctx.Err(); err != nil {
		return models.ExtractedFields{}, errors.Wrap(err, "extract")
	}
	if strings.TrimSpace(text) == "" {
		return models.ExtractedFields{}, errors.Wrap(errors.ErrExtraction, "document has no text layer")
	}
	fields := Parse(text)
	if !fields.HasIdentification() {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "case identification not found in document")
	}
	return fields, nil
}

func plainText(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("malformed pdf", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "read text layer")
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", errors.Wrap(err, "read text layer")
	}
	return string(b), nil
}

var (
	titlePattern       = regexp.MustCompile(`([A-Z]+)\s+(\d+)/(\d{4})\s+RG\s+(\d+)/(\d{4})`)
	raiPattern         = regexp.MustCompile(`RAI:\s*(\d+)`)
	unitPattern        = regexp.MustCompile(`Unidade\s+Solicitante:\s*([^\n]+)`)
	authorityPattern   = regexp.MustCompile(`(?s)Autoridade:\s*(.*?)\s*(?:Tipificações:|Cidade:|Endereço:)`)
	cityPattern        = regexp.MustCompile(`Cidade:\s*([^\n]+)`)
	addressPattern     = regexp.MustCompile(`(?s)Endereço:\s*(.*?)\s*(?:Complemento:|Coordenadas:|$)`)
	complementPattern  = regexp.MustCompile(`(?s)Complemento:\s*(.*?)\s*(?:Coordenadas:|Histórico|$)`)
	coordinatesPattern = regexp.MustCompile(`Latitude:\s*(-?\d+[,.]\d+).*?Longitude:\s*(-?\d+[,.]\d+)`)
	historyPattern     = regexp.MustCompile(`(?s)Histórico incluído em:[^\n]*\n(.*?)(?:\n\s*Requisições vinculadas|$)`)
	sectionPattern     = regexp.MustCompile(`(?m)^(\S[^:\n]*):\s*`)
	spaces             = regexp.MustCompile(`\s+`)
	blankLines         = regexp.MustCompile(`\n{2,}`)
)

// Parse reads the occurrence fields from the text of an intake document. Fields that are not found stay empty.
func Parse(text string) models.ExtractedFields {
	text = blankLines.ReplaceAllString(text, "\n")
	var f models.ExtractedFields

	if m := titlePattern.FindStringSubmatch(text); m != nil {
		f.CaseNumber = m[2]
		f.CaseYear, _ = strconv.Atoi(m[3])
		f.ReportNumber = m[4]
		f.Extra = map[string]string{"unit": m[1]}
	}
	f.RAI = first(raiPattern, text)
	f.RequestingUnit = first(unitPattern, text)
	f.Authority = first(authorityPattern, text)
	f.City = first(cityPattern, text)
	f.Address = first(addressPattern, text)
	f.AddressComplement = first(complementPattern, text)
	if m := coordinatesPattern.FindStringSubmatch(text); m != nil {
		lat, latErr := parseDecimal(m[1])
		lon, lonErr := parseDecimal(m[2])
		if latErr == nil && lonErr == nil {
			f.Coordinates = &models.Location{Latitude: lat, Longitude: lon, RecordedAt: nil}
		}
	}
	if m := historyPattern.FindStringSubmatch(text); m != nil {
		f.History = sections(strings.TrimSpace(m[1]))
	}
	return f
}

// sections splits "Title: content" blocks where each title starts a line.
func sections(text string) []models.Section {
	idx := sectionPattern.FindAllStringSubmatchIndex(text, -1)
	result := make([]models.Section, 0, len(idx))
	for i, m := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		result = append(result, models.Section{
			Title:   strings.TrimSpace(text[m[2]:m[3]]),
			Content: strings.TrimSpace(spaces.ReplaceAllString(text[m[1]:end], " ")),
		})
	}
	return result
}

func first(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// parseDecimal accepts both decimal commas and points.
func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse decimal", slog.String("value", s))
	}
	return v, nil
}
