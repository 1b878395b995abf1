package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"langtest_backend/internal/model"
	"langtest_backend/internal/repository"
	"langtest_backend/internal/util"
	"langtest_backend/pkg/locker"
	"langtest_backend/pkg/logger"
	"langtest_backend/pkg/monitoring"
	"langtest_backend/pkg/tracing"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type SubmissionService struct {
	Store      repository.SubmissionStore
	Catalog    repository.QuestionCatalog
	Locker     locker.Locker
	Aggregator *Aggregator
	Storage    StorageProvider
	TempDir    string

	now   func() time.Time
	probe func(path string) (*util.MediaInfo, error)
}

func NewSubmissionService(store repository.SubmissionStore, catalog repository.QuestionCatalog, lk locker.Locker, storage StorageProvider, tempDir string) *SubmissionService {
	return &SubmissionService{
		Store:      store,
		Catalog:    catalog,
		Locker:     lk,
		Aggregator: NewAggregator(),
		Storage:    storage,
		TempDir:    tempDir,
		now:        time.Now,
		probe:      util.GetMediaInfo,
	}
}

// SubmissionDetail 学生查看自己的作答
type SubmissionDetail struct {
	Submission *model.Submission      `json:"submission"`
	Items      []model.SubmissionItem `json:"items"`
	Answers    []model.Answer         `json:"answers"`
}

func submissionLockKey(id string) string {
	return "submission:" + id
}

// withSubmissionLock 持有提交锁并在事务内对提交记录加行锁后执行 fn
func (s *SubmissionService) withSubmissionLock(ctx context.Context, submissionID string, fn func(tx repository.SubmissionStore, sub *model.Submission) error) error {
	unlock, err := s.Locker.Lock(ctx, submissionLockKey(submissionID))
	if err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}
	defer unlock()

	return s.Store.Transaction(ctx, func(tx repository.SubmissionStore) error {
		sub, err := tx.LockSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		return fn(tx, sub)
	})
}

// Start 开始一次作答并冻结试卷题目
func (s *SubmissionService) Start(ctx context.Context, userID uint, setID string) (*model.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.Start")
	defer span.End()
	span.SetAttributes(attribute.String("set_id", setID), attribute.Int64("user_id", int64(userID)))

	unlock, err := s.Locker.Lock(ctx, fmt.Sprintf("start:%d:%s", userID, setID))
	if err != nil {
		return nil, fmt.Errorf("acquire start lock: %w", err)
	}
	defer unlock()

	if _, err := s.Store.FindActiveSubmission(ctx, userID, setID); err == nil {
		return nil, util.ErrDuplicateAttempt
	} else if !errors.Is(err, util.ErrNotFound) {
		tracing.RecordError(span, err)
		return nil, err
	}

	questions, err := s.Catalog.GetQuestionsForSet(ctx, setID)
	if err != nil {
		return nil, fmt.Errorf("load test set %s: %w", setID, err)
	}

	activeKey := model.ActiveKeyFor(userID, setID)
	sub := &model.Submission{
		UserID:    userID,
		SetID:     setID,
		Status:    model.StatusInProgress,
		ActiveKey: &activeKey,
	}
	sub.ID = model.GenerateUUID()

	items := make([]model.SubmissionItem, 0, len(questions))
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		// 同一道题在试卷中只保留第一次出现的位置
		if seen[q.ID] {
			logger.Log.Warn("duplicate question in test set",
				zap.String("set_id", setID),
				zap.String("question_id", q.ID),
			)
			continue
		}
		seen[q.ID] = true
		if q.Points <= 0 {
			q.Points = 1
		}
		items = append(items, model.NewSubmissionItem(sub.ID, len(items), q))
		sub.MaxScore += float64(q.Points)
	}

	if err := s.Store.CreateSubmission(ctx, sub, items); err != nil {
		if !errors.Is(err, util.ErrDuplicateAttempt) {
			tracing.RecordError(span, err)
		}
		return nil, err
	}

	monitoring.SubmissionsStarted.Inc()
	logger.Log.Info("submission started",
		zap.String("submission_id", sub.ID),
		zap.Uint("user_id", userID),
		zap.String("set_id", setID),
		zap.Int("questions", len(items)),
	)
	return sub, nil
}

// RecordAnswer 作答中覆盖写入某题答案，提交后返回 ErrSubmissionClosed
func (s *SubmissionService) RecordAnswer(ctx context.Context, userID uint, submissionID, questionID string, answerData json.RawMessage) error {
	_, err := s.replaceAnswer(ctx, userID, submissionID, questionID, answerData)
	return err
}

// replaceAnswer 在提交锁内覆盖答案，返回被覆盖的旧 answerData（没有时为 nil）
func (s *SubmissionService) replaceAnswer(ctx context.Context, userID uint, submissionID, questionID string, answerData json.RawMessage) (datatypes.JSON, error) {
	if len(answerData) == 0 {
		answerData = json.RawMessage("null")
	}
	if !json.Valid(answerData) {
		return nil, util.ErrInvalidAnswerData
	}

	var previous datatypes.JSON
	err := s.withSubmissionLock(ctx, submissionID, func(tx repository.SubmissionStore, sub *model.Submission) error {
		if sub.UserID != userID {
			return util.ErrPermissionDenied
		}
		if sub.Status != model.StatusInProgress {
			return fmt.Errorf("record answer on %s submission: %w", sub.Status, util.ErrSubmissionClosed)
		}
		if _, err := tx.FindItem(ctx, submissionID, questionID); err != nil {
			return fmt.Errorf("question %s: %w", questionID, err)
		}

		old, err := tx.FindAnswer(ctx, submissionID, questionID)
		switch {
		case err == nil:
			previous = old.AnswerData
		case !errors.Is(err, util.ErrNotFound):
			return err
		}

		return tx.UpsertAnswerData(ctx, &model.Answer{
			SubmissionID: submissionID,
			QuestionID:   questionID,
			AnswerData:   datatypes.JSON(answerData),
		})
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// Submit 交卷：补齐未作答的题目，客观题判分；没有主观题时直接完成
func (s *SubmissionService) Submit(ctx context.Context, userID uint, submissionID string) (*model.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("submission_id", submissionID))

	var result *model.Submission
	err := s.withSubmissionLock(ctx, submissionID, func(tx repository.SubmissionStore, sub *model.Submission) error {
		if sub.UserID != userID {
			return util.ErrPermissionDenied
		}
		if sub.Status != model.StatusInProgress {
			return fmt.Errorf("submit %s submission: %w", sub.Status, util.ErrSubmissionClosed)
		}

		items, err := tx.ListItems(ctx, submissionID)
		if err != nil {
			return err
		}
		existing, err := tx.ListAnswers(ctx, submissionID)
		if err != nil {
			return err
		}
		byQuestion := make(map[string]model.Answer, len(existing))
		for _, a := range existing {
			byQuestion[a.QuestionID] = a
		}

		hasSubjective := false
		answers := make([]model.Answer, 0, len(items))
		for _, item := range items {
			ans, ok := byQuestion[item.QuestionID]
			if !ok {
				ans = model.Answer{SubmissionID: submissionID, QuestionID: item.QuestionID}
			}
			ans.ManualScore = nil
			ans.AutoScore = nil
			ans.IsCorrect = nil

			if item.Type.IsSubjective() {
				hasSubjective = true
			} else {
				res, err := Score(ScoreInputFor(item, ans.AnswerData))
				if err != nil {
					logger.Log.Warn("scoring failed, counted as unanswered",
						zap.String("submission_id", submissionID),
						zap.String("question_id", item.QuestionID),
						zap.Error(err),
					)
					res = ScoreResult{}
				}
				autoScore, isCorrect := res.AutoScore, res.IsCorrect
				ans.AutoScore = &autoScore
				ans.IsCorrect = &isCorrect
			}
			answers = append(answers, ans)
		}

		if err := tx.SaveAnswers(ctx, answers); err != nil {
			return err
		}

		now := s.now()
		sub.SubmitTime = &now
		sub.Status = model.StatusSubmitted
		sub.ActiveKey = nil

		if !hasSubjective {
			if err := s.finalize(ctx, tx, sub); err != nil {
				return err
			}
		} else if err := tx.UpdateSubmission(ctx, sub); err != nil {
			return err
		}

		result = sub
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if result.Status == model.StatusCompleted {
		monitoring.SubmissionsSubmitted.WithLabelValues(string(model.StatusCompleted)).Inc()
		monitoring.SubmissionsCompleted.WithLabelValues(monitoring.CompletedAuto).Inc()
	} else {
		monitoring.SubmissionsSubmitted.WithLabelValues(string(model.StatusSubmitted)).Inc()
	}
	logger.Log.Info("submission submitted",
		zap.String("submission_id", result.ID),
		zap.Uint("user_id", result.UserID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// CompleteIfFullyGraded 所有主观题都已评分时完成提交，否则什么也不做
func (s *SubmissionService) CompleteIfFullyGraded(ctx context.Context, submissionID string) (*model.Submission, bool, error) {
	var (
		result    *model.Submission
		completed bool
	)
	err := s.withSubmissionLock(ctx, submissionID, func(tx repository.SubmissionStore, sub *model.Submission) error {
		var err error
		completed, err = s.completeIfFullyGradedLocked(ctx, tx, sub)
		result = sub
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if completed {
		monitoring.SubmissionsCompleted.WithLabelValues(monitoring.CompletedGraded).Inc()
	}
	return result, completed, nil
}

// 调用方必须持有提交锁
func (s *SubmissionService) completeIfFullyGradedLocked(ctx context.Context, tx repository.SubmissionStore, sub *model.Submission) (bool, error) {
	if sub.Status != model.StatusSubmitted {
		return false, nil
	}

	items, err := tx.ListItems(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	answers, err := tx.ListAnswers(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	if countUngraded(items, answers, "") > 0 {
		return false, nil
	}

	if err := s.finalize(ctx, tx, sub); err != nil {
		return false, err
	}
	return true, nil
}

// finalize 标记完成并由 Aggregator 写入总分
func (s *SubmissionService) finalize(ctx context.Context, tx repository.SubmissionStore, sub *model.Submission) error {
	now := s.now()
	if sub.SubmitTime == nil {
		sub.SubmitTime = &now
	}
	sub.Status = model.StatusCompleted
	sub.CompletedAt = &now
	sub.ActiveKey = nil

	total, err := s.Aggregator.Aggregate(ctx, tx, sub)
	if err != nil {
		return err
	}
	logger.Log.Info("submission completed",
		zap.String("submission_id", sub.ID),
		zap.Float64("score", total),
		zap.Float64("max_score", sub.MaxScore),
	)
	return nil
}

// countUngraded 统计没有人工分的主观题数量，skill 为空时不过滤
func countUngraded(items []model.SubmissionItem, answers []model.Answer, skill model.Skill) int {
	graded := make(map[string]bool, len(answers))
	for _, a := range answers {
		graded[a.QuestionID] = a.ManualScore != nil
	}
	n := 0
	for _, item := range items {
		if !item.Type.IsSubjective() {
			continue
		}
		if skill != "" && item.Skill != skill {
			continue
		}
		if !graded[item.QuestionID] {
			n++
		}
	}
	return n
}

// GetSubmission 学生只能查看自己的提交，教师和管理员不受限制
func (s *SubmissionService) GetSubmission(ctx context.Context, claims *util.Claims, submissionID string) (*SubmissionDetail, error) {
	sub, err := s.Store.FindSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !claims.IsStaff() && sub.UserID != claims.UserID {
		return nil, util.ErrPermissionDenied
	}

	items, err := s.Store.ListItems(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Store.ListAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].MediaURL = ResolveMediaURL(s.Storage, items[i].MediaURL)
	}
	return &SubmissionDetail{Submission: sub, Items: items, Answers: answers}, nil
}

// UploadRecording 保存口语题录音并写入答案 {"mediaKey","durationSec"}
func (s *SubmissionService) UploadRecording(ctx context.Context, userID uint, submissionID, questionID, filename string, src io.Reader) (*model.Answer, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.UploadRecording")
	defer span.End()

	if s.Storage == nil {
		return nil, errors.New("media storage is not configured")
	}

	// 先做一次无锁的预检查，避免无效请求上传文件
	sub, err := s.Store.FindSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if sub.Status != model.StatusInProgress {
		return nil, fmt.Errorf("upload recording on %s submission: %w", sub.Status, util.ErrSubmissionClosed)
	}
	item, err := s.Store.FindItem(ctx, submissionID, questionID)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", questionID, err)
	}
	if item.Type != model.QuestionSpeakingPrompt {
		return nil, fmt.Errorf("recording for %s question: %w", item.Type, util.ErrInvalidQuestionType)
	}
	if !util.HasAllowedExtension(filename, util.AllowedRecordingExtensions) {
		return nil, fmt.Errorf("extension of %q: %w", filename, util.ErrInvalidRecording)
	}
	ext := strings.ToLower(filepath.Ext(filename))

	tmp, err := os.CreateTemp(s.TempDir, "recording-*"+ext)
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, io.LimitReader(src, util.MaxRecordingBytes+1))
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if n > util.MaxRecordingBytes {
		tmp.Close()
		return nil, fmt.Errorf("recording exceeds %d bytes: %w", util.MaxRecordingBytes, util.ErrInvalidRecording)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	mimeType, err := util.ValidateMimeType(tmp, util.AllowedRecordingMimeTypes)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("detected %s: %w", mimeType, err)
	}

	info, err := s.probe(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, util.ErrInvalidRecording)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("recording has no duration: %w", util.ErrInvalidRecording)
	}

	key := path.Join(util.RecordingPrefix, submissionID, questionID+"-"+model.GenerateUUID()+ext)
	if _, err := s.Storage.UploadFile(ctx, key, tmpPath, mimeType); err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("store recording: %w", err)
	}

	payload, _ := json.Marshal(RecordingPayload{MediaKey: key, DurationSec: info.Duration})
	oldData, err := s.replaceAnswer(ctx, userID, submissionID, questionID, payload)
	if err != nil {
		if delErr := s.Storage.Delete(ctx, key); delErr != nil {
			logger.Log.Warn("delete orphaned recording failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	if previous, ok := decodeRecording(oldData); ok && previous.MediaKey != key && ownRecordingKey(submissionID, previous.MediaKey) {
		if err := s.Storage.Delete(ctx, previous.MediaKey); err != nil {
			logger.Log.Warn("delete replaced recording failed", zap.String("key", previous.MediaKey), zap.Error(err))
		}
	}

	logger.Log.Info("recording uploaded",
		zap.String("submission_id", submissionID),
		zap.String("question_id", questionID),
		zap.String("key", key),
		zap.Float64("duration", info.Duration),
	)
	return s.Store.FindAnswer(ctx, submissionID, questionID)
}

// ownRecordingKey 判断 key 是否位于该提交自己的录音目录下
func ownRecordingKey(submissionID, key string) bool {
	prefix := path.Join(util.RecordingPrefix, submissionID) + "/"
	return strings.HasPrefix(key, prefix) && !strings.Contains(key, "..")
}
