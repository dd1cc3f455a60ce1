package dto

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/markwise-app/markwise-api/internal/grading"
	"github.com/markwise-app/markwise-api/internal/models"
)

func TestNewEvaluationResponseDecodesStoredColumns(t *testing.T) {
	summary, err := json.Marshal(grading.Summary{TotalAwarded: 7, TotalPossible: 10, Percentage: 70})
	require.NoError(t, err)

	model := models.Evaluation{
		PublicID:     "b2a1",
		Summary:      datatypes.JSON(summary),
		DocumentURLs: datatypes.JSON([]byte(`["https://cdn.example/paper.png"]`)),
	}

	var buf bytes.Buffer
	response := NewEvaluationResponse(model, zerolog.New(&buf))
	require.Equal(t, 7.0, response.Summary.TotalAwarded)
	require.Equal(t, []string{"https://cdn.example/paper.png"}, response.DocumentURLs)
	require.Empty(t, buf.String(), "clean rows decode silently")
}

func TestNewEvaluationResponseLogsCorruptedColumns(t *testing.T) {
	model := models.Evaluation{
		PublicID: "b2a1",
		Summary:  datatypes.JSON([]byte(`{"totalAwarded":`)),
	}

	var buf bytes.Buffer
	response := NewEvaluationResponse(model, zerolog.New(&buf))
	require.Zero(t, response.Summary.TotalAwarded, "corrupted summary renders zero-valued")
	require.Contains(t, buf.String(), "stored evaluation column failed to decode")
	require.Contains(t, buf.String(), `"column":"summary"`)
	require.Contains(t, buf.String(), `"public_id":"b2a1"`)
}
