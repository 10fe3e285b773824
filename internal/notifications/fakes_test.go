package notifications

import (
	"context"
	"sync"

	"github.com/electromart/notification-service/internal/domain"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu            sync.Mutex
	records       map[string]*domain.Notification
	order         []string
	updateErr     error
	statusHistory map[string][]domain.Status
}

func newMemRepo() *memRepo {
	return &memRepo{
		records:       make(map[string]*domain.Notification),
		statusHistory: make(map[string][]domain.Status),
	}
}

func (r *memRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *n
	r.records[n.ID] = &clone
	r.order = append(r.order, n.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.records[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	clone := *n
	return &clone, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, update StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}

	n, ok := r.records[id]
	if !ok {
		return ErrNotificationNotFound
	}

	n.Status = update.Status
	if update.SentAt != nil {
		n.SentAt = update.SentAt
	}
	if update.ErrorMessage != nil {
		n.ErrorMessage = *update.ErrorMessage
	}
	if update.IncrementRetry {
		n.RetryCount++
	}
	r.statusHistory[id] = append(r.statusHistory[id], update.Status)
	return nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string, filter ListFilter) ([]domain.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Notification
	for i := len(r.order) - 1; i >= 0; i-- {
		n := r.records[r.order[i]]
		if n.UserID != userID {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		matched = append(matched, *n)
	}

	total := len(matched)
	offset := filter.Offset()
	if offset >= total {
		return nil, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memRepo) ListIncomplete(_ context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, id := range r.order {
		if r.records[id].Status.Terminal() {
			continue
		}
		ids = append(ids, id)
		if len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

func (r *memRepo) CountByStatus(_ context.Context) (map[domain.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[domain.Status]int64)
	for _, n := range r.records {
		counts[n.Status]++
	}
	return counts, nil
}

func (r *memRepo) get(id string) *domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.records[id]
	return &clone
}

func (r *memRepo) history(id string) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.statusHistory[id]...)
}

// memPrefs is an in-memory PreferenceRepository for tests.
type memPrefs struct {
	mu      sync.Mutex
	records map[string]*domain.Preferences
	getErr  error
}

func newMemPrefs() *memPrefs {
	return &memPrefs{records: make(map[string]*domain.Preferences)}
}

func (r *memPrefs) Get(_ context.Context, userID string) (*domain.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.records[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memPrefs) Upsert(_ context.Context, prefs *domain.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *prefs
	r.records[prefs.UserID] = &clone
	return nil
}

// stubSender is a scriptable Sender for tests.
type stubSender struct {
	channel domain.Channel

	mu    sync.Mutex
	calls int
	// errs[i] is the result of call i; calls past the end succeed.
	errs []error
	sent []*domain.Notification
}

func (s *stubSender) Channel() domain.Channel { return s.channel }

func (s *stubSender) Send(_ context.Context, n *domain.Notification, _ *domain.UserDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.calls
	s.calls++
	s.sent = append(s.sent, n)
	if call < len(s.errs) {
		return s.errs[call]
	}
	return nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubLookup is a scriptable UserLookup for tests.
type stubLookup struct {
	user *domain.UserDetails
	err  error
}

func (l *stubLookup) Lookup(_ context.Context, _ string) (*domain.UserDetails, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.user != nil {
		return l.user, nil
	}
	return &domain.UserDetails{ID: "user-1", Email: "user@example.com"}, nil
}

// stubQueue records enqueued ids.
type stubQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *stubQueue) Enqueue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *stubQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}
