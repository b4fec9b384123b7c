package service

import (
	"context"
	"fmt"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/model"
)

// In-memory repository doubles shared by the service tests.

type fakeSubscriptionRepo struct {
	subs    []*model.Subscription
	inserts int
	updates int
}

func (r *fakeSubscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	for _, s := range r.subs {
		if s.UserID == userID {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	for _, s := range r.subs {
		if s.StripeCustomerID == customerID {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) Insert(ctx context.Context, sub *model.Subscription) error {
	c := *sub
	if c.ID == "" {
		c.ID = fmt.Sprintf("sub-row-%d", len(r.subs)+1)
	}
	r.subs = append(r.subs, &c)
	r.inserts++
	return nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	for i, s := range r.subs {
		if s.ID == sub.ID || s.UserID == sub.UserID {
			c := *sub
			c.ID = s.ID
			r.subs[i] = &c
			r.updates++
			return nil
		}
	}
	return fmt.Errorf("subscription not found: %s", sub.ID)
}

func (r *fakeSubscriptionRepo) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	for _, s := range r.subs {
		if s.UserID == userID {
			s.CancelAtPeriodEnd = cancel
			return nil
		}
	}
	return fmt.Errorf("subscription not found for user: %s", userID)
}

type usageKey struct {
	userID   string
	resource model.ResourceType
	week     time.Time
}

type fakeUsageRepo struct {
	counts map[usageKey]int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: make(map[usageKey]int)}
}

func (r *fakeUsageRepo) CountForWeek(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) (int, error) {
	return r.counts[usageKey{userID, resource, weekStart}], nil
}

func (r *fakeUsageRepo) Increment(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) error {
	r.counts[usageKey{userID, resource, weekStart}]++
	return nil
}

func (r *fakeUsageRepo) TryConsume(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time, limit int) (bool, error) {
	k := usageKey{userID, resource, weekStart}
	if r.counts[k] >= limit {
		return false, nil
	}
	r.counts[k]++
	return true, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (r *fakeUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	for _, u := range r.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	u.StripeCustomerID = &customerID
	return nil
}

type publishedMessage struct {
	Topic   string
	Payload []byte
}

type fakePublisher struct {
	published []publishedMessage
	fail      bool
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if p.fail {
		return "", fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, publishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("msg-%d", len(p.published)), nil
}

type fakeExamRepo struct {
	exams map[string]*model.Exam
	seq   int
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{exams: make(map[string]*model.Exam)}
}

func (r *fakeExamRepo) Create(ctx context.Context, exam *model.Exam) (*model.Exam, error) {
	r.seq++
	c := *exam
	c.ID = fmt.Sprintf("exam-%d", r.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.exams[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, examID string) (*model.Exam, error) {
	e, ok := r.exams[examID]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (r *fakeExamRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Exam, error) {
	var out []model.Exam
	for _, e := range r.exams {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) SaveGenerated(ctx context.Context, examID, title, description string, questions []model.Question) error {
	e, ok := r.exams[examID]
	if !ok {
		return fmt.Errorf("exam not found: %s", examID)
	}
	e.Title = title
	e.Description = description
	e.Questions = questions
	e.Status = model.ExamStatusWaitingResponse
	return nil
}

func (r *fakeExamRepo) RecordAnswers(ctx context.Context, examID string, score, elapsedSec int) error {
	e, ok := r.exams[examID]
	if !ok {
		return fmt.Errorf("exam not found: %s", examID)
	}
	e.Score = &score
	e.ElapsedSec = &elapsedSec
	e.Status = model.ExamStatusAnswered
	return nil
}

type fakeEssayRepo struct {
	essays      map[string]*model.Essay
	corrections map[string]*model.EssayCorrection
	seq         int
}

func newFakeEssayRepo() *fakeEssayRepo {
	return &fakeEssayRepo{
		essays:      make(map[string]*model.Essay),
		corrections: make(map[string]*model.EssayCorrection),
	}
}

func (r *fakeEssayRepo) Create(ctx context.Context, essay *model.Essay) (*model.Essay, error) {
	r.seq++
	c := *essay
	c.ID = fmt.Sprintf("essay-%d", r.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.essays[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeEssayRepo) GetByID(ctx context.Context, essayID string) (*model.Essay, error) {
	e, ok := r.essays[essayID]
	if !ok {
		return nil, nil
	}
	c := *e
	if corr, ok := r.corrections[essayID]; ok {
		cc := *corr
		c.Correction = &cc
	}
	return &c, nil
}

func (r *fakeEssayRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Essay, error) {
	var out []model.Essay
	for _, e := range r.essays {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEssayRepo) UpdateStatus(ctx context.Context, essayID, status string) error {
	e, ok := r.essays[essayID]
	if !ok {
		return fmt.Errorf("essay not found: %s", essayID)
	}
	e.Status = status
	return nil
}

func (r *fakeEssayRepo) SaveCorrection(ctx context.Context, correction *model.EssayCorrection) error {
	e, ok := r.essays[correction.EssayID]
	if !ok {
		return fmt.Errorf("essay not found: %s", correction.EssayID)
	}
	c := *correction
	r.corrections[correction.EssayID] = &c
	now := time.Now()
	e.Status = model.EssayStatusCorrected
	e.CorrectedAt = &now
	return nil
}
