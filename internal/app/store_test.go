package app

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/evanschultz/sprintboard/internal/domain"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory Store. Each transaction works on a copy of the committed state that
// is swapped in only when fn succeeds.
type fakeStore struct {
	mu      sync.Mutex
	tasks   map[string]domain.Task
	history []domain.HistoryRecord
	nextID  int64
	tickets int
	failOn  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]domain.Task{}}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &fakeTx{
		tasks:   maps.Clone(s.tasks),
		history: slices.Clone(s.history),
		nextID:  s.nextID,
		tickets: s.tickets,
		failOn:  s.failOn,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.tasks = tx.tasks
	s.history = tx.history
	s.nextID = tx.nextID
	s.tickets = tx.tickets
	return nil
}

// seed stores tasks directly, bypassing the engine.
func (s *fakeStore) seed(tasks ...domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
}

func (s *fakeStore) snapshot() (map[string]domain.Task, []domain.HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.tasks), slices.Clone(s.history)
}

type fakeTx struct {
	tasks   map[string]domain.Task
	history []domain.HistoryRecord
	nextID  int64
	tickets int
	failOn  string
}

func (tx *fakeTx) fail(method string) error {
	if tx.failOn == method {
		return errInjected
	}
	return nil
}

func (tx *fakeTx) LockTask(ctx context.Context, id string) (domain.Task, error) {
	if err := tx.fail("LockTask"); err != nil {
		return domain.Task{}, err
	}
	return tx.GetTask(ctx, id)
}

func (tx *fakeTx) GetTask(_ context.Context, id string) (domain.Task, error) {
	task, ok := tx.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return task, nil
}

func (tx *fakeTx) InsertTask(_ context.Context, task domain.Task) error {
	if err := tx.fail("InsertTask"); err != nil {
		return err
	}
	tx.tasks[task.ID] = task
	return nil
}

func (tx *fakeTx) UpdateTask(_ context.Context, task domain.Task) error {
	if err := tx.fail("UpdateTask"); err != nil {
		return err
	}
	if _, ok := tx.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	tx.tasks[task.ID] = task
	return nil
}

func (tx *fakeTx) DeleteTask(_ context.Context, id string) error {
	if err := tx.fail("DeleteTask"); err != nil {
		return err
	}
	delete(tx.tasks, id)
	return nil
}

func (tx *fakeTx) ListByStatus(_ context.Context, status domain.Status) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for _, task := range tx.tasks {
		if task.Status == status {
			out = append(out, task)
		}
	}
	slices.SortFunc(out, comparePosition)
	return out, nil
}

func (tx *fakeTx) ListBySprint(_ context.Context, sprintID *string) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for _, task := range tx.tasks {
		if domain.SameSprint(task.SprintID, sprintID) {
			out = append(out, task)
		}
	}
	slices.SortFunc(out, compareSprintOrder)
	return out, nil
}

func (tx *fakeTx) ListSprintIDs(context.Context) ([]string, error) {
	out := make([]string, 0)
	for _, task := range tx.tasks {
		if task.SprintID != nil && !slices.Contains(out, *task.SprintID) {
			out = append(out, *task.SprintID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (tx *fakeTx) SetPositions(_ context.Context, updates []PositionUpdate) error {
	if err := tx.fail("SetPositions"); err != nil {
		return err
	}
	for _, update := range updates {
		task := tx.tasks[update.TaskID]
		task.Position = update.Position
		tx.tasks[update.TaskID] = task
	}
	return nil
}

func (tx *fakeTx) SetSprintOrders(_ context.Context, updates []SprintOrderUpdate) error {
	for _, update := range updates {
		task := tx.tasks[update.TaskID]
		order := update.SprintOrder
		task.SprintOrder = &order
		tx.tasks[update.TaskID] = task
	}
	return nil
}

func (tx *fakeTx) ShiftPositions(_ context.Context, status domain.Status, after, delta int) error {
	for id, task := range tx.tasks {
		if task.Status == status && task.Position > after {
			task.Position += delta
			tx.tasks[id] = task
		}
	}
	return nil
}

func (tx *fakeTx) ShiftSprintOrders(_ context.Context, sprintID string, after, delta float64) error {
	for id, task := range tx.tasks {
		if task.SprintID == nil || *task.SprintID != sprintID || task.SprintOrder == nil {
			continue
		}
		if *task.SprintOrder > after {
			order := *task.SprintOrder + delta
			task.SprintOrder = &order
			tx.tasks[id] = task
		}
	}
	return nil
}

func (tx *fakeTx) MaxPosition(_ context.Context, status domain.Status) (int, error) {
	out := 0
	for _, task := range tx.tasks {
		if task.Status == status {
			out = max(out, task.Position)
		}
	}
	return out, nil
}

func (tx *fakeTx) MaxSprintOrder(_ context.Context, sprintID string) (*float64, error) {
	var out *float64
	for _, task := range tx.tasks {
		if task.SprintID == nil || *task.SprintID != sprintID || task.SprintOrder == nil {
			continue
		}
		if out == nil || *task.SprintOrder > *out {
			v := *task.SprintOrder
			out = &v
		}
	}
	return out, nil
}

func (tx *fakeTx) NextTicketNumber(context.Context) (int, error) {
	for _, task := range tx.tasks {
		tx.tickets = max(tx.tickets, task.TicketNumber)
	}
	tx.tickets++
	return tx.tickets, nil
}

func (tx *fakeTx) AppendHistory(_ context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error) {
	if err := tx.fail("AppendHistory"); err != nil {
		return domain.HistoryRecord{}, err
	}
	tx.nextID++
	record.ID = tx.nextID
	tx.history = append(tx.history, record)
	return record, nil
}

func (tx *fakeTx) ListHistory(_ context.Context, taskID string) ([]domain.HistoryRecord, error) {
	out := make([]domain.HistoryRecord, 0)
	for _, record := range tx.history {
		if record.TaskID == taskID {
			out = append(out, record)
		}
	}
	return out, nil
}
