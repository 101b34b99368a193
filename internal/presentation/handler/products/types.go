package products

import "github.com/namimod25/toko-online/internal/domain"

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
}

func (req productRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
	}
}

// updateRequest carries the descriptive fields only; stock moves through the
// stock endpoint.
type updateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
	Price       float64 `json:"price"`
}

func (req updateRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
	}
}

// stockRequest sets an absolute level or applies a delta; exactly one is allowed.
type stockRequest struct {
	Stock *int64 `json:"stock,omitempty" example:"7"`
	Delta *int64 `json:"delta,omitempty" example:"-3"`
}

type stockResponse struct {
	ID            string `json:"id"`
	Stock         int64  `json:"stock"`
	PreviousStock int64  `json:"previousStock"`
}

type listResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}
