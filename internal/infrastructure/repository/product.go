package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/namimod25/toko-online/internal/domain"
)

const defaultCapacity = 10000

// productRepository keeps products in memory. Stored values are copies, so
// callers can mutate what they get back.
type productRepository struct {
	products map[string]*domain.Product // ID -> Product
	capacity uint
	mu       *sync.RWMutex
}

func NewProductRepository(capacity uint) domain.ProductRepository {
	if capacity == 0 {
		capacity = defaultCapacity
	}

	return &productRepository{
		products: make(map[string]*domain.Product),
		capacity: capacity,
		mu:       &sync.RWMutex{},
	}
}

// Create adds a product if its ID is unique and capacity allows.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product == nil || product.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		return domain.ErrProductAlreadyExists
	}
	if uint(len(r.products)) >= r.capacity {
		return domain.ErrStoreFull
	}

	stored := *product
	r.products[product.ID] = &stored

	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, domain.ErrProductNotFound
	}

	out := *product
	return &out, nil
}

// List returns every product, oldest first.
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	products := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, *p)
	}
	r.mu.RUnlock()

	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	if product == nil || product.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.products[product.ID]
	if !exists {
		return domain.ErrProductNotFound
	}

	stored := *product
	stored.Stock = existing.Stock
	stored.CreatedAt = existing.CreatedAt
	r.products[product.ID] = &stored

	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt

	return nil
}

// Delete removes a product and returns what was stored.
func (r *productRepository) Delete(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.products[id]
	if !exists {
		return nil, domain.ErrProductNotFound
	}

	delete(r.products, id)

	return stored, nil
}

func (r *productRepository) SetStock(ctx context.Context, id string, stock int64) (int64, error) {
	if id == "" || stock < 0 {
		return 0, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.products[id]
	if !exists {
		return 0, domain.ErrProductNotFound
	}

	previous := stored.Stock
	stored.Stock = stock
	stored.UpdatedAt = time.Now().UTC()

	return previous, nil
}

func (r *productRepository) AddStock(ctx context.Context, id string, delta int64) (int64, int64, error) {
	if id == "" {
		return 0, 0, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.products[id]
	if !exists {
		return 0, 0, domain.ErrProductNotFound
	}

	previous := stored.Stock
	current, err := domain.AddStock(previous, delta)
	if err != nil {
		return previous, previous, err
	}

	stored.Stock = current
	stored.UpdatedAt = time.Now().UTC()

	return previous, stored.Stock, nil
}
