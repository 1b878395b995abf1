package controller

import (
	"encoding/json"
	"langtest_backend/internal/service"
	"langtest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	Service *service.SubmissionService
}

func NewSubmissionController(svc *service.SubmissionService) *SubmissionController {
	return &SubmissionController{Service: svc}
}

type StartSubmissionRequest struct {
	SetID string `json:"setId" binding:"required"`
}

type RecordAnswerRequest struct {
	AnswerData json.RawMessage `json:"answerData" swaggertype:"object"`
}

// @Summary 开始作答
// @Description 为当前用户创建一次作答并冻结试卷题目；已有进行中的作答时返回 409
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body StartSubmissionRequest true "试卷"
// @Success 201 {object} util.Response{data=model.Submission}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/submissions [post]
func (c *SubmissionController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sub, err := c.Service.Start(ctx.Request.Context(), user.UserID, req.SetID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, sub)
}

// @Summary 获取作答详情
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.SubmissionDetail}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Service.GetSubmission(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 保存答案
// @Description 覆盖写入某题的答案，仅在作答进行中有效
// @Tags 作答
// @Accept json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Param questionId path string true "题目ID"
// @Param body body RecordAnswerRequest true "答案"
// @Success 204
// @Failure 409 {object} util.Response
// @Router /api/submissions/{id}/answers/{questionId} [put]
func (c *SubmissionController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RecordAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.Service.RecordAnswer(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("questionId"), req.AnswerData)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}

// @Summary 上传口语录音
// @Tags 作答
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Param questionId path string true "题目ID"
// @Param file formData file true "录音文件"
// @Success 200 {object} util.Response{data=model.Answer}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/submissions/{id}/answers/{questionId}/recording [post]
func (c *SubmissionController) UploadRecording(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请上传录音文件")
		return
	}
	if file.Size > util.MaxRecordingBytes {
		util.BadRequest(ctx, "录音文件过大")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	answer, err := c.Service.UploadRecording(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("questionId"), file.Filename, src)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// @Summary 交卷
// @Description 交卷后客观题自动判分；没有主观题时直接完成并返回总分
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 409 {object} util.Response
// @Router /api/submissions/{id}/submit [post]
func (c *SubmissionController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sub, err := c.Service.Submit(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
