package repository

import (
	"context"
	"langtest_backend/internal/model"

	"gorm.io/gorm"
)

// QuestionCatalog 题库的只读视图，引擎不会修改题目
type QuestionCatalog interface {
	GetQuestionsForSet(ctx context.Context, setID string) ([]model.Question, error)
	GetQuestion(ctx context.Context, questionID string) (*model.Question, error)
}

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// GetQuestionsForSet 按试卷中的顺序返回题目，试卷不存在时返回 ErrNotFound
func (r *QuestionRepository) GetQuestionsForSet(ctx context.Context, setID string) ([]model.Question, error) {
	db := r.DB.WithContext(ctx)

	var set model.TestSet
	if err := db.Select("id").First(&set, "id = ?", setID).Error; err != nil {
		return nil, translate(err)
	}

	var questions []model.Question
	err := db.Table("questions q").
		Select("q.*").
		Joins("JOIN test_set_questions tsq ON tsq.question_id = q.id AND tsq.deleted_at IS NULL").
		Where("tsq.set_id = ? AND q.deleted_at IS NULL", setID).
		Order("tsq.`order` asc, tsq.id asc").
		Scan(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (*model.Question, error) {
	var q model.Question
	if err := r.DB.WithContext(ctx).First(&q, "id = ?", questionID).Error; err != nil {
		return nil, translate(err)
	}
	return &q, nil
}
