package memory

import (
	"context"
	"sort"
	"sync"

	"kvizmajstor/internal/domain"
)

// CategoryStore is an in-memory category store.
type CategoryStore struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{categories: make(map[string]domain.Category)}
}

// NewSeededCategoryStore preloads categories, mirroring the startup seed
// the service applies on first run.
func NewSeededCategoryStore(categories []domain.Category) *CategoryStore {
	store := NewCategoryStore()
	for _, category := range categories {
		store.categories[category.ID] = category
	}
	return store
}

func (s *CategoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CategoryStore) GetCategory(_ context.Context, categoryID string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[categoryID]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return category, nil
}

func (s *CategoryStore) SaveCategory(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return nil
}

func (s *CategoryStore) DeleteCategory(_ context.Context, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *CategoryStore) AdjustQuizCount(_ context.Context, categoryID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[categoryID]
	if !ok {
		return domain.ErrCategoryNotFound
	}
	category.QuizCount += delta
	if category.QuizCount < 0 {
		category.QuizCount = 0
	}
	s.categories[categoryID] = category
	return nil
}
