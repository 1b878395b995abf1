package service

import (
	"fmt"
	"langtest_backend/internal/model"
	"langtest_backend/internal/util"
	"sort"
	"strings"
)

// ScoreInput 判分所需的题目快照与作答内容
type ScoreInput struct {
	Type           model.QuestionType
	Points         int
	CorrectAnswers []byte
	AnswerData     []byte
}

type ScoreResult struct {
	AutoScore float64
	IsCorrect bool
}

func ScoreInputFor(item model.SubmissionItem, answerData []byte) ScoreInput {
	return ScoreInput{
		Type:           item.Type,
		Points:         item.Points,
		CorrectAnswers: item.CorrectAnswers,
		AnswerData:     answerData,
	}
}

// Score 客观题判分，全对得满分否则 0 分，不支持部分得分。
// 未作答或格式错误的作答得 0 分，不返回错误；主观题返回 ErrInvalidQuestionType。
func Score(in ScoreInput) (ScoreResult, error) {
	points := float64(in.Points)
	if points < 0 {
		points = 0
	}

	var correct bool
	switch in.Type {
	case model.QuestionMCQSingle:
		correct = scoreSingle(in.CorrectAnswers, in.AnswerData)
	case model.QuestionMCQMulti:
		correct = scoreMulti(in.CorrectAnswers, in.AnswerData)
	case model.QuestionFillBlank:
		correct = scoreFillBlank(in.CorrectAnswers, in.AnswerData)
	default:
		return ScoreResult{}, fmt.Errorf("score %q: %w", in.Type, util.ErrInvalidQuestionType)
	}

	if !correct {
		return ScoreResult{}, nil
	}
	return ScoreResult{AutoScore: points, IsCorrect: true}, nil
}

func scoreSingle(keyRaw, payloadRaw []byte) bool {
	key, ok := decodeAnswerKey(keyRaw)
	if !ok || len(key) != 1 {
		return false
	}
	selected, status := decodeSelection(payloadRaw)
	if status != payloadOK || len(selected) != 1 {
		return false
	}
	return strings.TrimSpace(selected[0]) == strings.TrimSpace(key[0])
}

func scoreMulti(keyRaw, payloadRaw []byte) bool {
	key, ok := decodeAnswerKey(keyRaw)
	if !ok {
		return false
	}
	selected, status := decodeSelection(payloadRaw)
	if status != payloadOK {
		return false
	}
	return equalSet(normalizeSet(selected), normalizeSet(key))
}

func scoreFillBlank(keyRaw, payloadRaw []byte) bool {
	key, ok := decodeBlankKey(keyRaw)
	if !ok {
		return false
	}
	blanks, status := decodeBlanks(payloadRaw)
	if status != payloadOK || len(blanks) != len(key) {
		return false
	}
	for i, blank := range blanks {
		if !acceptsVariant(key[i], blank) {
			return false
		}
	}
	return true
}

func normalizeBlank(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func acceptsVariant(variants []string, candidate string) bool {
	c := normalizeBlank(candidate)
	if c == "" {
		return false
	}
	for _, v := range variants {
		if normalizeBlank(v) == c {
			return true
		}
	}
	return false
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func equalSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
