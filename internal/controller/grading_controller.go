package controller

import (
	"langtest_backend/internal/model"
	"langtest_backend/internal/service"
	"langtest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	Service *service.GradingService
}

func NewGradingController(svc *service.GradingService) *GradingController {
	return &GradingController{Service: svc}
}

// @Summary 待评分队列
// @Description 列出还有未评分主观题的提交，按交卷时间排序
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param status query string false "只支持 submitted" default(submitted)
// @Param skill query string false "技能过滤" Enums(Reading, Listening, Speaking, Writing, GrammarVocabulary)
// @Success 200 {object} util.Response{data=[]service.QueueItem}
// @Failure 400 {object} util.Response
// @Router /api/admin/submissions [get]
func (c *GradingController) ListQueue(ctx *gin.Context) {
	if status := ctx.DefaultQuery("status", string(model.StatusSubmitted)); status != string(model.StatusSubmitted) {
		util.BadRequest(ctx, "only status=submitted is supported")
		return
	}

	filter := service.QueueFilter{Skill: model.Skill(ctx.Query("skill"))}
	queue, err := c.Service.ListPendingQueue(ctx.Request.Context(), filter)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, queue)
}

// @Summary 评阅作答
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.ReviewSheet}
// @Failure 404 {object} util.Response
// @Router /api/admin/submissions/{id}/answers [get]
func (c *GradingController) ReviewAnswers(ctx *gin.Context) {
	sheet, err := c.Service.GetAnswersForReview(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sheet)
}

// @Summary 主观题评分
// @Description 写入人工分与评语，所有主观题评分后提交自动完成
// @Tags 评分
// @Accept json
// @Security BearerAuth
// @Param body body service.GradeRequest true "评分"
// @Success 204
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/grade [post]
func (c *GradingController) Grade(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if _, err := c.Service.Grade(ctx.Request.Context(), user.UserID, req); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}

// @Summary 强制完成
// @Description 未评分的主观题按 0 分计入总分
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 409 {object} util.Response
// @Router /api/admin/submissions/{id}/complete [post]
func (c *GradingController) Complete(ctx *gin.Context) {
	sub, err := c.Service.Complete(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
