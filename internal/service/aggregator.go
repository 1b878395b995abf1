package service

import (
	"context"
	"langtest_backend/internal/model"
	"langtest_backend/internal/repository"
	"sort"
)

// Aggregator 总分的唯一写入者，只在持有提交锁的事务内调用
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Total 按 questionID 排序后累加，保证同样的答案总能得到同样的总分
func (a *Aggregator) Total(answers []model.Answer) float64 {
	sorted := make([]model.Answer, len(answers))
	copy(sorted, answers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].QuestionID < sorted[j].QuestionID
	})

	total := 0.0
	for _, ans := range sorted {
		if s := ans.CurrentScore(); s != nil {
			total += *s
		}
	}
	return total
}

// Aggregate 重新计算并保存提交的总分
func (a *Aggregator) Aggregate(ctx context.Context, tx repository.SubmissionStore, sub *model.Submission) (float64, error) {
	answers, err := tx.ListAnswers(ctx, sub.ID)
	if err != nil {
		return 0, err
	}

	total := a.Total(answers)
	sub.TotalScore = &total
	if err := tx.UpdateSubmission(ctx, sub); err != nil {
		return 0, err
	}
	return total, nil
}
