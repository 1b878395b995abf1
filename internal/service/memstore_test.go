package service

import (
	"bytes"
	"context"
	"io"
	"langtest_backend/internal/model"
	"langtest_backend/internal/repository"
	"langtest_backend/internal/util"
	"langtest_backend/pkg/locker"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
)

// memStore 内存版 SubmissionStore，事务串行执行，出错时回滚。
// concurrent 为 true 时事务互不阻塞也不回滚，互斥只能依赖服务层的锁。
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	subs   map[string]model.Submission
	items  map[string][]model.SubmissionItem
	answer map[string]map[string]model.Answer

	concurrent bool
	// 读取提交后停顿，放大并发窗口
	lockDelay time.Duration
	inflight  int
	maxInTx   int
	completes int

	saveAnswersErr error
}

func newMemStore() *memStore {
	return &memStore{
		subs:   make(map[string]model.Submission),
		items:  make(map[string][]model.SubmissionItem),
		answer: make(map[string]map[string]model.Answer),
	}
}

type memSnapshot struct {
	subs   map[string]model.Submission
	items  map[string][]model.SubmissionItem
	answer map[string]map[string]model.Answer
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		subs:   make(map[string]model.Submission, len(m.subs)),
		items:  make(map[string][]model.SubmissionItem, len(m.items)),
		answer: make(map[string]map[string]model.Answer, len(m.answer)),
	}
	for k, v := range m.subs {
		snap.subs[k] = v
	}
	for k, v := range m.items {
		snap.items[k] = append([]model.SubmissionItem(nil), v...)
	}
	for k, v := range m.answer {
		inner := make(map[string]model.Answer, len(v))
		for q, a := range v {
			inner[q] = a
		}
		snap.answer[k] = inner
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs, m.items, m.answer = snap.subs, snap.items, snap.answer
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx repository.SubmissionStore) error) error {
	if m.concurrent {
		m.mu.Lock()
		m.inflight++
		if m.inflight > m.maxInTx {
			m.maxInTx = m.inflight
		}
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			m.inflight--
			m.mu.Unlock()
		}()
		return fn(m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) CreateSubmission(ctx context.Context, sub *model.Submission, items []model.SubmissionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ActiveKey != nil {
		for _, existing := range m.subs {
			if existing.ActiveKey != nil && *existing.ActiveKey == *sub.ActiveKey {
				return util.ErrDuplicateAttempt
			}
		}
	}
	if sub.ID == "" {
		sub.ID = model.GenerateUUID()
	}
	now := time.Now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	m.subs[sub.ID] = *sub

	stored := make([]model.SubmissionItem, len(items))
	for i := range items {
		items[i].SubmissionID = sub.ID
		items[i].ID = uint(i + 1)
		stored[i] = items[i]
	}
	m.items[sub.ID] = stored
	return nil
}

func (m *memStore) FindSubmission(ctx context.Context, id string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) LockSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := m.FindSubmission(ctx, id)
	if err == nil && m.lockDelay > 0 {
		time.Sleep(m.lockDelay)
	}
	return sub, err
}

// stats 返回同时进行中的事务峰值和写入 completed 状态的次数
func (m *memStore) stats() (maxInTx, completes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInTx, m.completes
}

func (m *memStore) FindActiveSubmission(ctx context.Context, userID uint, setID string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.SetID == setID && s.Status == model.StatusInProgress {
			found := s
			return &found, nil
		}
	}
	return nil, util.ErrNotFound
}

func (m *memStore) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return util.ErrNotFound
	}
	if sub.Status == model.StatusCompleted {
		m.completes++
	}
	sub.UpdatedAt = time.Now()
	m.subs[sub.ID] = *sub
	return nil
}

func (m *memStore) ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Submission
	for _, s := range m.subs {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListItems(ctx context.Context, submissionID string) ([]model.SubmissionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SubmissionItem(nil), m.items[submissionID]...), nil
}

func (m *memStore) FindItem(ctx context.Context, submissionID, questionID string) (*model.SubmissionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items[submissionID] {
		if item.QuestionID == questionID {
			found := item
			return &found, nil
		}
	}
	return nil, util.ErrNotFound
}

func (m *memStore) ListAnswers(ctx context.Context, submissionID string) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Answer, 0, len(m.answer[submissionID]))
	for _, a := range m.answer[submissionID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memStore) FindAnswer(ctx context.Context, submissionID, questionID string) (*model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answer[submissionID][questionID]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) UpsertAnswerData(ctx context.Context, answer *model.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQ, ok := m.answer[answer.SubmissionID]
	if !ok {
		byQ = make(map[string]model.Answer)
		m.answer[answer.SubmissionID] = byQ
	}
	if existing, ok := byQ[answer.QuestionID]; ok {
		existing.AnswerData = answer.AnswerData
		existing.UpdatedAt = time.Now()
		byQ[answer.QuestionID] = existing
		return nil
	}
	if answer.ID == "" {
		answer.ID = model.GenerateUUID()
	}
	byQ[answer.QuestionID] = *answer
	return nil
}

func (m *memStore) SaveAnswers(ctx context.Context, answers []model.Answer) error {
	if m.saveAnswersErr != nil {
		return m.saveAnswersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range answers {
		if a.ID == "" {
			a.ID = model.GenerateUUID()
		}
		byQ, ok := m.answer[a.SubmissionID]
		if !ok {
			byQ = make(map[string]model.Answer)
			m.answer[a.SubmissionID] = byQ
		}
		byQ[a.QuestionID] = a
	}
	return nil
}

// memCatalog 内存题库
type memCatalog struct {
	mu        sync.Mutex
	sets      map[string][]string
	questions map[string]model.Question
}

func newMemCatalog() *memCatalog {
	return &memCatalog{sets: make(map[string][]string), questions: make(map[string]model.Question)}
}

func (c *memCatalog) addSet(setID string, qs ...model.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		c.questions[q.ID] = q
		ids = append(ids, q.ID)
	}
	c.sets[setID] = ids
}

func (c *memCatalog) GetQuestionsForSet(ctx context.Context, setID string) ([]model.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.sets[setID]
	if !ok {
		return nil, util.ErrNotFound
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.questions[id])
	}
	return out, nil
}

func (c *memCatalog) GetQuestion(ctx context.Context, questionID string) (*model.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.questions[questionID]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &q, nil
}

// memStorage 内存媒体存储
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.files[key] = buf.Bytes()
	s.mu.Unlock()
	return s.GetURL(key), nil
}

func (s *memStorage) UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	s.mu.Lock()
	s.files[key] = []byte(localPath)
	s.mu.Unlock()
	return s.GetURL(key), nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

func (s *memStorage) GetURL(key string) string {
	return "/media/" + key
}

func (s *memStorage) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.files {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *memStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok
}

func question(id string, skill model.Skill, typ model.QuestionType, points int, correct string) model.Question {
	q := model.Question{
		Title:  "Q " + id,
		Skill:  skill,
		Type:   typ,
		Points: points,
	}
	q.ID = id
	if correct != "" {
		q.CorrectAnswers = datatypes.JSON(correct)
	}
	return q
}

type fixture struct {
	store   *memStore
	catalog *memCatalog
	storage *memStorage
	subs    *SubmissionService
	grading *GradingService

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMemStore(),
		catalog: newMemCatalog(),
		storage: newMemStorage(),
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.subs = NewSubmissionService(f.store, f.catalog, locker.NewLocalLocker(), f.storage, "")
	f.subs.now = func() time.Time {
		f.clockMu.Lock()
		defer f.clockMu.Unlock()
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	f.grading = NewGradingService(f.subs)
	return f
}
