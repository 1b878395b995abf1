package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{ErrNotFound, http.StatusNotFound, "NotFound"},
		{ErrDuplicateAttempt, http.StatusConflict, "DuplicateAttempt"},
		{ErrSubmissionClosed, http.StatusConflict, "SubmissionClosed"},
		{ErrInvalidQuestionType, http.StatusBadRequest, "InvalidQuestionType"},
		{ErrOutOfRange, http.StatusBadRequest, "OutOfRange"},
		{ErrPermissionDenied, http.StatusForbidden, "PermissionDenied"},
		{ErrInvalidRecording, http.StatusBadRequest, "InvalidRecording"},
		{ErrInvalidAnswerData, http.StatusBadRequest, "InvalidAnswerData"},
		{ErrInvalidFilter, http.StatusBadRequest, "InvalidFilter"},
		{fmt.Errorf("submit: %w", ErrSubmissionClosed), http.StatusConflict, "SubmissionClosed"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, StatusFor(tt.err), tt.err.Error())
		assert.Equal(t, tt.kind, ErrorKind(tt.err), tt.err.Error())
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondError(c, fmt.Errorf("grade: %w", ErrOutOfRange))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OutOfRange", resp.Kind)
	assert.Contains(t, resp.Message, "manual score out of range")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(c, errors.New("db down"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestParseProbeOutput(t *testing.T) {
	out := `{
		"streams": [{"codec_type": "video", "codec_name": "png"}, {"codec_type": "audio", "codec_name": "opus"}],
		"format": {"duration": "12.480000", "size": "20480", "format_name": "matroska,webm"}
	}`

	info, err := parseProbeOutput(out, 1)
	require.NoError(t, err)
	assert.InDelta(t, 12.48, info.Duration, 1e-9)
	assert.Equal(t, "opus", info.Codec)
	assert.Equal(t, "matroska", info.Format)
	assert.Equal(t, int64(20480), info.Size)

	info, err = parseProbeOutput(`{"streams": [], "format": {}}`, 99)
	require.NoError(t, err)
	assert.Zero(t, info.Duration)
	assert.Equal(t, "unknown", info.Format)
	assert.Equal(t, int64(99), info.Size)

	_, err = parseProbeOutput("not json", 0)
	assert.Error(t, err)
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("answer.MP3", AllowedRecordingExtensions))
	assert.True(t, HasAllowedExtension("clip.webm", AllowedRecordingExtensions))
	assert.False(t, HasAllowedExtension("notes.txt", AllowedRecordingExtensions))
	assert.False(t, HasAllowedExtension("noext", AllowedRecordingExtensions))
}

func TestValidateMimeType(t *testing.T) {
	mime, err := ValidateMimeType(bytes.NewReader(append([]byte("ID3"), make([]byte, 64)...)), AllowedRecordingMimeTypes)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mime)

	_, err = ValidateMimeType(bytes.NewReader([]byte("plain text answer")), AllowedRecordingMimeTypes)
	assert.ErrorIs(t, err, ErrInvalidRecording)
}
