package models_test

import (
	"github.com/myrjola/casebot/internal/models"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestBaseCaseID(t *testing.T) {
	fields := models.ExtractedFields{CaseNumber: "123", ReportNumber: "45/B", CaseYear: 2024}
	require.Equal(t, "SEPPATRI_123_45-B_2024", models.BaseCaseID("SEPPATRI", fields))
	require.Equal(t, "SEPPATRI 123/45/B/2024", models.DisplayCaseID("SEPPATRI", fields))

	anonymous := models.BaseCaseID("SEPPATRI", models.ExtractedFields{CaseNumber: "123"})
	require.True(t, strings.HasPrefix(anonymous, "SEPPATRI_"))
	require.NotEqual(t, anonymous, models.BaseCaseID("SEPPATRI", models.ExtractedFields{}))
}

func TestUniqueCaseID(t *testing.T) {
	taken := map[string]bool{"C": true, "C-2": true}
	require.Equal(t, "C-3", models.UniqueCaseID("C", func(id string) bool { return taken[id] }))
	require.Equal(t, "D", models.UniqueCaseID("D", func(id string) bool { return taken[id] }))
}
