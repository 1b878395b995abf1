package model

import (
	"gorm.io/datatypes"
)

type Skill string

const (
	SkillReading           Skill = "Reading"
	SkillListening         Skill = "Listening"
	SkillSpeaking          Skill = "Speaking"
	SkillWriting           Skill = "Writing"
	SkillGrammarVocabulary Skill = "GrammarVocabulary"
)

func (s Skill) Valid() bool {
	switch s {
	case SkillReading, SkillListening, SkillSpeaking, SkillWriting, SkillGrammarVocabulary:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionMCQSingle      QuestionType = "mcq_single"
	QuestionMCQMulti       QuestionType = "mcq_multi"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionWritingPrompt  QuestionType = "writing_prompt"
	QuestionSpeakingPrompt QuestionType = "speaking_prompt"
)

// IsObjective 可机器判分的题型
func (t QuestionType) IsObjective() bool {
	switch t {
	case QuestionMCQSingle, QuestionMCQMulti, QuestionFillBlank:
		return true
	}
	return false
}

// IsSubjective 需要人工评分的题型（写作/口语）
func (t QuestionType) IsSubjective() bool {
	return t == QuestionWritingPrompt || t == QuestionSpeakingPrompt
}

// swagger:model Question
type Question struct {
	UUIDBase
	Title          string         `gorm:"size:255" json:"title"`
	Skill          Skill          `gorm:"size:30;index;not null" json:"skill"`
	Type           QuestionType   `gorm:"size:30;not null" json:"type"`
	Points         int            `gorm:"default:1" json:"points"`
	Content        string         `gorm:"type:text" json:"content"`
	Options        datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswers datatypes.JSON `gorm:"type:json" json:"correctAnswers,omitempty"`
	MediaURL       string         `gorm:"size:512" json:"mediaUrl,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model TestSet
type TestSet struct {
	UUIDBase
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	IsPublished bool   `gorm:"default:false" json:"isPublished"`
}

func (TestSet) TableName() string {
	return "test_sets"
}

type TestSetQuestion struct {
	BaseModel
	SetID      string `gorm:"index;type:varchar(36)" json:"setId"`
	QuestionID string `gorm:"index;type:varchar(36)" json:"questionId"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (TestSetQuestion) TableName() string {
	return "test_set_questions"
}
