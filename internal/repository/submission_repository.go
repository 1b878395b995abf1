package repository

import (
	"context"
	"errors"
	"langtest_backend/internal/model"
	"langtest_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionStore 提交记录与答案的持久化接口，Transaction 内的所有操作共用一个事务
type SubmissionStore interface {
	Transaction(ctx context.Context, fn func(tx SubmissionStore) error) error

	CreateSubmission(ctx context.Context, sub *model.Submission, items []model.SubmissionItem) error
	FindSubmission(ctx context.Context, id string) (*model.Submission, error)
	// LockSubmission 在事务内对提交记录加行锁（SELECT ... FOR UPDATE）
	LockSubmission(ctx context.Context, id string) (*model.Submission, error)
	FindActiveSubmission(ctx context.Context, userID uint, setID string) (*model.Submission, error)
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus) ([]model.Submission, error)

	ListItems(ctx context.Context, submissionID string) ([]model.SubmissionItem, error)
	FindItem(ctx context.Context, submissionID, questionID string) (*model.SubmissionItem, error)

	ListAnswers(ctx context.Context, submissionID string) ([]model.Answer, error)
	FindAnswer(ctx context.Context, submissionID, questionID string) (*model.Answer, error)
	UpsertAnswerData(ctx context.Context, answer *model.Answer) error
	SaveAnswers(ctx context.Context, answers []model.Answer) error
}

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Transaction(ctx context.Context, fn func(tx SubmissionStore) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SubmissionRepository{DB: tx})
	})
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, sub *model.Submission, items []model.SubmissionItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return util.ErrDuplicateAttempt
			}
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].SubmissionID = sub.ID
		}
		return tx.CreateInBatches(items, 100).Error
	})
}

func (r *SubmissionRepository) FindSubmission(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *SubmissionRepository) LockSubmission(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *SubmissionRepository) FindActiveSubmission(ctx context.Context, userID uint, setID string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND set_id = ? AND status = ?", userID, setID, model.StatusInProgress).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *SubmissionRepository) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	return r.DB.WithContext(ctx).Save(sub).Error
}

func (r *SubmissionRepository) ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).
		Where("status = ?", status).
		Order("submit_time asc, created_at asc").
		Find(&subs).Error
	return subs, err
}

func (r *SubmissionRepository) ListItems(ctx context.Context, submissionID string) ([]model.SubmissionItem, error) {
	var items []model.SubmissionItem
	err := r.DB.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("position asc, id asc").
		Find(&items).Error
	return items, err
}

func (r *SubmissionRepository) FindItem(ctx context.Context, submissionID, questionID string) (*model.SubmissionItem, error) {
	var item model.SubmissionItem
	err := r.DB.WithContext(ctx).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_id asc").
		Find(&answers).Error
	return answers, err
}

func (r *SubmissionRepository) FindAnswer(ctx context.Context, submissionID, questionID string) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.WithContext(ctx).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// UpsertAnswerData 按 (submission_id, question_id) 覆盖作答内容，后写入者生效
func (r *SubmissionRepository) UpsertAnswerData(ctx context.Context, answer *model.Answer) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_data", "updated_at"}),
	}).Create(answer).Error
}

func (r *SubmissionRepository) SaveAnswers(ctx context.Context, answers []model.Answer) error {
	db := r.DB.WithContext(ctx)
	for i := range answers {
		if err := db.Save(&answers[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotFound
	}
	return err
}
