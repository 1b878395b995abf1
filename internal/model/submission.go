package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "in_progress"
	StatusSubmitted  SubmissionStatus = "submitted"
	StatusCompleted  SubmissionStatus = "completed"
)

// swagger:model Submission
type Submission struct {
	UUIDBase
	UserID uint             `gorm:"index;type:bigint unsigned" json:"userId"`
	SetID  string           `gorm:"index;type:varchar(36)" json:"setId"`
	Status SubmissionStatus `gorm:"size:20;index;default:'in_progress'" json:"status"`
	// ActiveKey 仅在 in_progress 时非空，唯一索引保证同一用户同一试卷只有一个进行中的作答
	ActiveKey   *string    `gorm:"size:100;uniqueIndex" json:"-"`
	SubmitTime  *time.Time `json:"submitTime,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	TotalScore  *float64   `json:"totalScore,omitempty"`
	MaxScore    float64    `gorm:"default:0" json:"maxScore"`
}

func (Submission) TableName() string {
	return "submissions"
}

func ActiveKeyFor(userID uint, setID string) string {
	return fmt.Sprintf("%d:%s", userID, setID)
}

// SubmissionItem 开始作答时冻结的题目快照，之后题库的修改不影响本次作答
type SubmissionItem struct {
	BaseModel
	SubmissionID   string         `gorm:"uniqueIndex:idx_item_submission_question;type:varchar(36)" json:"submissionId"`
	QuestionID     string         `gorm:"uniqueIndex:idx_item_submission_question;type:varchar(36)" json:"questionId"`
	Position       int            `gorm:"default:0" json:"position"`
	Title          string         `gorm:"size:255" json:"title"`
	Skill          Skill          `gorm:"size:30" json:"skill"`
	Type           QuestionType   `gorm:"size:30" json:"type"`
	Points         int            `gorm:"default:1" json:"points"`
	Content        string         `gorm:"type:text" json:"content"`
	Options        datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswers datatypes.JSON `gorm:"type:json" json:"-"`
	MediaURL       string         `gorm:"size:512" json:"mediaUrl,omitempty"`
}

func (SubmissionItem) TableName() string {
	return "submission_items"
}

func NewSubmissionItem(submissionID string, position int, q Question) SubmissionItem {
	return SubmissionItem{
		SubmissionID:   submissionID,
		QuestionID:     q.ID,
		Position:       position,
		Title:          q.Title,
		Skill:          q.Skill,
		Type:           q.Type,
		Points:         q.Points,
		Content:        q.Content,
		Options:        q.Options,
		CorrectAnswers: q.CorrectAnswers,
		MediaURL:       q.MediaURL,
	}
}

// swagger:model Answer
type Answer struct {
	UUIDBase
	SubmissionID string         `gorm:"uniqueIndex:idx_answer_submission_question;type:varchar(36)" json:"submissionId"`
	QuestionID   string         `gorm:"uniqueIndex:idx_answer_submission_question;type:varchar(36)" json:"questionId"`
	AnswerData   datatypes.JSON `gorm:"type:json" json:"answerData,omitempty"`
	AutoScore    *float64       `json:"autoScore,omitempty"`
	ManualScore  *float64       `json:"manualScore,omitempty"`
	Comment      string         `gorm:"type:text" json:"comment,omitempty"`
	IsCorrect    *bool          `json:"isCorrect,omitempty"`
	GradedBy     *uint          `gorm:"type:bigint unsigned" json:"gradedBy,omitempty"`
	GradedAt     *time.Time     `json:"gradedAt,omitempty"`
}

func (Answer) TableName() string {
	return "submission_answers"
}

// CurrentScore 人工分优先，其次自动分，都没有时为 nil
func (a Answer) CurrentScore() *float64 {
	if a.ManualScore != nil {
		return a.ManualScore
	}
	return a.AutoScore
}
