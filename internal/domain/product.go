package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/namimod25/toko-online/internal/infrastructure/validate"
	"github.com/namimod25/toko-online/pkg/catalog"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidInput         = errors.New("invalid input")
	ErrStoreFull            = errors.New("product store is full")
)

type Product struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Category    string    `json:"category,omitempty" bson:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	Price       float64   `json:"price" bson:"price"`
	Stock       int64     `json:"stock" bson:"stock"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// ProductInput carries the mutable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       float64
	Stock       int64
}

type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	// Update stores the descriptive fields of product and leaves stock alone.
	// product.Stock is refreshed with the stored level.
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) (*Product, error)
	// SetStock stores an absolute stock level and returns the previous one.
	SetStock(ctx context.Context, id string, stock int64) (previous int64, err error)
	// AddStock applies delta atomically. The result may not go below zero.
	AddStock(ctx context.Context, id string, delta int64) (previous, current int64, err error)
}

var (
	validateName        = validate.Field("name", validate.Required(), validate.MaxLength(120), validate.Printable())
	validateDescription = validate.Field("description", validate.MaxLength(4000), validate.Printable())
	validateCategory    = validate.Field("category", validate.MaxLength(64), validate.Printable())
	validateImageURL    = validate.Field("imageUrl", validate.MaxLength(2048), validate.HTTPURL())
)

func (in ProductInput) normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}

func (in ProductInput) validate() error {
	checks := []error{
		validateName(in.Name),
		validateDescription(in.Description),
		validateCategory(in.Category),
		validateImageURL(in.ImageURL),
		validate.NonNegative("price", in.Price),
		validate.NonNegative("stock", in.Stock),
	}
	for _, err := range checks {
		if err != nil {
			return errors.Join(ErrInvalidInput, err)
		}
	}
	return nil
}

func NewProduct(in ProductInput) (*Product, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply replaces the descriptive fields of p with in. in.Stock is ignored; stock
// only moves through the repository's SetStock and AddStock.
func (p *Product) Apply(in ProductInput) error {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return err
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.ImageURL = in.ImageURL
	p.Price = in.Price
	p.UpdatedAt = time.Now().UTC()

	return nil
}

// AddStock returns stock+delta. A result below zero is ErrInsufficientStock; a
// delta the int64 range cannot hold is ErrInvalidInput.
func AddStock(stock, delta int64) (int64, error) {
	if delta == math.MinInt64 || (delta > 0 && stock > math.MaxInt64-delta) {
		return stock, fmt.Errorf("%w: stock delta %d out of range", ErrInvalidInput, delta)
	}
	if stock+delta < 0 {
		return stock, ErrInsufficientStock
	}
	return stock + delta, nil
}

func (p *Product) Catalog() catalog.Product {
	return catalog.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		Stock:       p.Stock,
		UpdatedAt:   p.UpdatedAt,
	}
}
