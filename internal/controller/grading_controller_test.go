package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"langtest_backend/internal/model"
	"langtest_backend/internal/service"
	"langtest_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradeRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctrl := NewGradingController(service.NewGradingService(&service.SubmissionService{}))
	r.POST("/api/admin/grade", func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: 42, Role: model.Teacher})
		c.Next()
	}, ctrl.Grade)
	return r
}

func TestGradeRejectsMissingScore(t *testing.T) {
	r := gradeRouter()

	bodies := []string{
		`{"submissionId":"s","questionId":"q","comment":"oops"}`,
		`{"submissionId":"s","questionId":"q","manualScore":null}`,
		`{"submissionId":"s","questionId":"q","manualScore":"7"}`,
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/grade", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code, body)
		var resp util.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	}
}

func TestGradeRequestBindsZeroScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"submissionId":"s","questionId":"q","manualScore":0}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req service.GradeRequest
	require.NoError(t, c.ShouldBindJSON(&req))
	require.NotNil(t, req.ManualScore)
	assert.Equal(t, 0.0, *req.ManualScore)
}
