package service

import (
	"context"
	"errors"
	"fmt"
	"langtest_backend/internal/model"
	"langtest_backend/internal/repository"
	"langtest_backend/internal/util"
	"langtest_backend/pkg/logger"
	"langtest_backend/pkg/monitoring"
	"langtest_backend/pkg/tracing"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type GradingService struct {
	Submissions *SubmissionService
	Store       repository.SubmissionStore
	Storage     StorageProvider
}

func NewGradingService(submissions *SubmissionService) *GradingService {
	return &GradingService{
		Submissions: submissions,
		Store:       submissions.Store,
		Storage:     submissions.Storage,
	}
}

type QueueFilter struct {
	Skill model.Skill
}

// QueueItem 待评分队列中的一条提交
type QueueItem struct {
	SubmissionID    string     `json:"submissionId"`
	UserID          uint       `json:"userId"`
	SetID           string     `json:"setId"`
	SubmitTime      *time.Time `json:"submitTime"`
	ItemCount       int        `json:"itemCount"`
	PendingCount    int        `json:"pendingCount"`
	SubjectiveCount int        `json:"subjectiveCount"`
}

type RecordingView struct {
	URL         string  `json:"url"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

// ReviewItem 题目快照与作答合并后的评阅视图
type ReviewItem struct {
	QuestionID     string             `json:"questionId"`
	Position       int                `json:"position"`
	Title          string             `json:"title"`
	Skill          model.Skill        `json:"skill"`
	Type           model.QuestionType `json:"type"`
	Points         int                `json:"points"`
	Content        string             `json:"content"`
	Options        datatypes.JSON     `json:"options,omitempty"`
	MediaURL       string             `json:"mediaUrl,omitempty"`
	CorrectAnswers datatypes.JSON     `json:"correctAnswers,omitempty"`

	AnswerData   datatypes.JSON `json:"answerData,omitempty"`
	Text         string         `json:"text,omitempty"`
	Recording    *RecordingView `json:"recording,omitempty"`
	AutoScore    *float64       `json:"autoScore,omitempty"`
	ManualScore  *float64       `json:"manualScore,omitempty"`
	CurrentScore *float64       `json:"currentScore,omitempty"`
	IsCorrect    *bool          `json:"isCorrect,omitempty"`
	Comment      string         `json:"comment,omitempty"`
	GradedBy     *uint          `json:"gradedBy,omitempty"`
	GradedAt     *time.Time     `json:"gradedAt,omitempty"`
}

type ReviewSheet struct {
	Submission *model.Submission `json:"submission"`
	Items      []ReviewItem      `json:"items"`
}

type GradeRequest struct {
	SubmissionID string `json:"submissionId" binding:"required"`
	QuestionID   string `json:"questionId" binding:"required"`
	// 指针区分缺失与 0 分
	ManualScore *float64 `json:"manualScore" binding:"required"`
	Comment     string   `json:"comment"`
}

// ListPendingQueue 列出还有未评分主观题的提交，按交卷时间先后排序。
// 主观题已全部评分但尚未完成的提交会在这里被补完成，不会出现在队列中。
func (s *GradingService) ListPendingQueue(ctx context.Context, filter QueueFilter) ([]QueueItem, error) {
	ctx, span := tracing.Tracer.Start(ctx, "GradingService.ListPendingQueue")
	defer span.End()

	if filter.Skill != "" && !filter.Skill.Valid() {
		return nil, fmt.Errorf("skill %q: %w", filter.Skill, util.ErrInvalidFilter)
	}

	subs, err := s.Store.ListSubmissionsByStatus(ctx, model.StatusSubmitted)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	queue := make([]QueueItem, 0, len(subs))
	for _, sub := range subs {
		items, err := s.Store.ListItems(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		answers, err := s.Store.ListAnswers(ctx, sub.ID)
		if err != nil {
			return nil, err
		}

		if countUngraded(items, answers, "") == 0 {
			if _, _, err := s.Submissions.CompleteIfFullyGraded(ctx, sub.ID); err != nil {
				logger.Log.Warn("completion check failed", zap.String("submission_id", sub.ID), zap.Error(err))
			}
			continue
		}

		pending := countUngraded(items, answers, filter.Skill)
		if pending == 0 {
			continue
		}
		subjective := 0
		for _, item := range items {
			if item.Type.IsSubjective() {
				subjective++
			}
		}
		queue = append(queue, QueueItem{
			SubmissionID:    sub.ID,
			UserID:          sub.UserID,
			SetID:           sub.SetID,
			SubmitTime:      sub.SubmitTime,
			ItemCount:       len(items),
			PendingCount:    pending,
			SubjectiveCount: subjective,
		})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i].SubmitTime, queue[j].SubmitTime
		if a == nil || b == nil {
			return a != nil
		}
		return a.Before(*b)
	})

	if filter.Skill == "" {
		monitoring.GradingQueueLength.Set(float64(len(queue)))
	}
	return queue, nil
}

// GetAnswersForReview 按冻结的题目顺序返回每道题的作答，客观题附带标准答案
func (s *GradingService) GetAnswersForReview(ctx context.Context, submissionID string) (*ReviewSheet, error) {
	sub, err := s.Store.FindSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	items, err := s.Store.ListItems(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Store.ListAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	sheet := &ReviewSheet{Submission: sub, Items: make([]ReviewItem, 0, len(items))}
	for _, item := range items {
		ri := ReviewItem{
			QuestionID: item.QuestionID,
			Position:   item.Position,
			Title:      item.Title,
			Skill:      item.Skill,
			Type:       item.Type,
			Points:     item.Points,
			Content:    item.Content,
			Options:    item.Options,
			MediaURL:   ResolveMediaURL(s.Storage, item.MediaURL),
		}
		if item.Type.IsObjective() {
			ri.CorrectAnswers = item.CorrectAnswers
		}

		if ans, ok := byQuestion[item.QuestionID]; ok {
			ri.AnswerData = ans.AnswerData
			ri.AutoScore = ans.AutoScore
			ri.ManualScore = ans.ManualScore
			ri.CurrentScore = ans.CurrentScore()
			ri.IsCorrect = ans.IsCorrect
			ri.Comment = ans.Comment
			ri.GradedBy = ans.GradedBy
			ri.GradedAt = ans.GradedAt

			switch item.Type {
			case model.QuestionWritingPrompt:
				ri.Text = decodeWriting(ans.AnswerData)
			case model.QuestionSpeakingPrompt:
				// 学生可以直接写 answerData，只解析本提交目录下的录音
				if rec, ok := decodeRecording(ans.AnswerData); ok && ownRecordingKey(submissionID, rec.MediaKey) {
					ri.Recording = &RecordingView{
						URL:         ResolveMediaURL(s.Storage, rec.MediaKey),
						DurationSec: rec.DurationSec,
					}
				}
			}
		}
		sheet.Items = append(sheet.Items, ri)
	}
	return sheet, nil
}

// Grade 写入主观题人工分（可重复评分，覆盖旧值），随后检查提交是否可以完成
func (s *GradingService) Grade(ctx context.Context, graderID uint, req GradeRequest) (*model.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "GradingService.Grade")
	defer span.End()
	span.SetAttributes(
		attribute.String("submission_id", req.SubmissionID),
		attribute.String("question_id", req.QuestionID),
	)

	var (
		result    *model.Submission
		skill     model.Skill
		completed bool
	)
	err := s.Submissions.withSubmissionLock(ctx, req.SubmissionID, func(tx repository.SubmissionStore, sub *model.Submission) error {
		if sub.Status == model.StatusInProgress {
			return fmt.Errorf("grade in_progress submission: %w", util.ErrSubmissionClosed)
		}

		item, err := tx.FindItem(ctx, req.SubmissionID, req.QuestionID)
		if err != nil {
			return fmt.Errorf("question %s: %w", req.QuestionID, err)
		}
		if !item.Type.IsSubjective() {
			return fmt.Errorf("manual score on %s question: %w", item.Type, util.ErrInvalidQuestionType)
		}
		if req.ManualScore == nil {
			return fmt.Errorf("manual score missing: %w", util.ErrOutOfRange)
		}
		score := *req.ManualScore
		if math.IsNaN(score) || score < 0 || score > float64(item.Points) {
			return fmt.Errorf("score %v not in [0, %d]: %w", score, item.Points, util.ErrOutOfRange)
		}
		skill = item.Skill

		answer, err := tx.FindAnswer(ctx, req.SubmissionID, req.QuestionID)
		if err != nil {
			if !errors.Is(err, util.ErrNotFound) {
				return err
			}
			answer = &model.Answer{SubmissionID: req.SubmissionID, QuestionID: req.QuestionID}
		}

		now := s.Submissions.now()
		grader := graderID
		answer.ManualScore = &score
		answer.AutoScore = nil
		answer.IsCorrect = nil
		answer.Comment = req.Comment
		answer.GradedBy = &grader
		answer.GradedAt = &now
		if err := tx.SaveAnswers(ctx, []model.Answer{*answer}); err != nil {
			return err
		}

		switch sub.Status {
		case model.StatusSubmitted:
			completed, err = s.Submissions.completeIfFullyGradedLocked(ctx, tx, sub)
			if err != nil {
				return err
			}
		case model.StatusCompleted:
			// 完成后重新评分，总分需要重算
			if _, err := s.Submissions.Aggregator.Aggregate(ctx, tx, sub); err != nil {
				return err
			}
		}
		result = sub
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	monitoring.AnswersGraded.WithLabelValues(string(skill)).Inc()
	if completed {
		monitoring.SubmissionsCompleted.WithLabelValues(monitoring.CompletedGraded).Inc()
	}
	logger.Log.Info("answer graded",
		zap.String("submission_id", req.SubmissionID),
		zap.String("question_id", req.QuestionID),
		zap.Uint("grader_id", graderID),
		zap.Float64("score", *req.ManualScore),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// Complete 强制完成：未评分的主观题按 0 分计
func (s *GradingService) Complete(ctx context.Context, submissionID string) (*model.Submission, error) {
	var result *model.Submission
	err := s.Submissions.withSubmissionLock(ctx, submissionID, func(tx repository.SubmissionStore, sub *model.Submission) error {
		if sub.Status != model.StatusSubmitted {
			return fmt.Errorf("complete %s submission: %w", sub.Status, util.ErrSubmissionClosed)
		}
		if err := s.Submissions.finalize(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.SubmissionsCompleted.WithLabelValues(monitoring.CompletedForced).Inc()
	logger.Log.Info("submission force-completed", zap.String("submission_id", submissionID))
	return result, nil
}
