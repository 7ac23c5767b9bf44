package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFormat_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("production", "", &buf)

	log.Info("stage started", "stage", "import_masters")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stage started", line["msg"])
	assert.Equal(t, "import_masters", line["stage"])
	assert.Contains(t, line["source"], "logger_test.go:")
}

func TestNewWithFormat_DevelopmentDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("development", "", &buf)

	log.Debug("chunk imported")
	assert.Contains(t, buf.String(), "chunk imported")
}

func TestWithContext_JobFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("production", "", &buf)

	ctx := WithJob(context.Background(), "job-1", "process_daybook")
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")
	log.WithContext(ctx).Info("processing")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "job-1", line["job_id"])
	assert.Equal(t, "process_daybook", line["stage"])
	assert.Equal(t, "req-9", line["request_id"])
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.Error("ignored")
	})
}
