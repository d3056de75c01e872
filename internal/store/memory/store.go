package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/store"
	"github.com/shopspring/decimal"
)

type budgetKey struct {
	year  int
	month time.Month
}

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	receipts map[int64]*domain.Receipt
	budgets  map[budgetKey]decimal.Decimal
}

var _ store.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a store that stamps uploads using now.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:      now,
		receipts: make(map[int64]*domain.Receipt),
		budgets:  make(map[budgetKey]decimal.Decimal),
	}
}

// CreateReceipt implements store.ReceiptRepository.
func (s *Store) CreateReceipt(ctx context.Context, image string) (*domain.Receipt, error) {
	if image == "" {
		return nil, fmt.Errorf("CreateReceipt: image reference is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r := &domain.Receipt{
		ID:         s.nextID,
		UploadedAt: s.now().UTC(),
		Image:      image,
		Category:   domain.DefaultCategory,
	}
	s.receipts[r.ID] = r

	return copyReceipt(r)
}

// UpdateExtraction implements store.ReceiptRepository.
func (s *Store) UpdateExtraction(ctx context.Context, id int64, data domain.ReceiptData, category string) error {
	cloned, err := cloneData(data)
	if err != nil {
		return fmt.Errorf("UpdateExtraction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[id]
	if !ok {
		return fmt.Errorf("UpdateExtraction: receipt %d: %w", id, store.ErrNotFound)
	}
	r.Data = cloned
	r.Category = category
	return nil
}

// GetReceipt implements store.ReceiptRepository.
func (s *Store) GetReceipt(ctx context.Context, id int64) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receipts[id]
	if !ok {
		return nil, fmt.Errorf("GetReceipt: receipt %d: %w", id, store.ErrNotFound)
	}
	return copyReceipt(r)
}

// ListReceipts implements store.ReceiptRepository.
func (s *Store) ListReceipts(ctx context.Context) ([]*domain.Receipt, error) {
	return s.list(func(*domain.Receipt) bool { return true })
}

// ListReceiptsUploadedIn implements store.ReceiptRepository.
func (s *Store) ListReceiptsUploadedIn(ctx context.Context, year int, month time.Month) ([]*domain.Receipt, error) {
	start, end := store.MonthBounds(year, month)
	return s.list(func(r *domain.Receipt) bool {
		return !r.UploadedAt.Before(start) && r.UploadedAt.Before(end)
	})
}

func (s *Store) list(keep func(*domain.Receipt) bool) ([]*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		if !keep(r) {
			continue
		}
		c, err := copyReceipt(r)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].UploadedAt.After(result[j].UploadedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// GetOrCreateBudget implements store.BudgetRepository.
func (s *Store) GetOrCreateBudget(ctx context.Context, year int, month time.Month, defaultLimit decimal.Decimal) (*domain.MonthlyBudget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey{year, month}
	limit, exists := s.budgets[key]
	if !exists {
		limit = defaultLimit.Round(2)
		s.budgets[key] = limit
	}
	return &domain.MonthlyBudget{Year: year, Month: month, Limit: limit}, !exists, nil
}

// UpsertBudget implements store.BudgetRepository.
func (s *Store) UpsertBudget(ctx context.Context, year int, month time.Month, limit decimal.Decimal) (*domain.MonthlyBudget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey{year, month}
	_, exists := s.budgets[key]
	s.budgets[key] = limit.Round(2)
	return &domain.MonthlyBudget{Year: year, Month: month, Limit: s.budgets[key]}, !exists, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// copyReceipt returns a deep copy so callers cannot modify stored state.
func copyReceipt(r *domain.Receipt) (*domain.Receipt, error) {
	c := *r
	data, err := cloneData(r.Data)
	if err != nil {
		return nil, err
	}
	c.Data = data
	return &c, nil
}

// cloneData round-trips through JSON, the same normalization a SQL backend applies.
func cloneData(data domain.ReceiptData) (domain.ReceiptData, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode receipt data: %w", err)
	}
	return domain.ParseReceiptData(raw)
}
