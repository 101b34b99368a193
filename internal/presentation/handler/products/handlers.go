package products

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/events"
	"github.com/namimod25/toko-online/internal/infrastructure/json"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
)

const publishTimeout = 2 * time.Second

type Handler struct {
	productRepository domain.ProductRepository
	publisher         events.Publisher
	logger            logging.Logger
}

func NewHandler(
	productRepository domain.ProductRepository,
	publisher events.Publisher,
	logger logging.Logger,
) *Handler {
	return &Handler{
		productRepository: productRepository,
		publisher:         publisher,
		logger:            logger,
	}
}

// CreateProductHandler godoc
// @Summary      Create a product
// @Description  Stores a new product and announces it on the global and admin feeds
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body productRequest true "Product fields"
// @Success      201 {object} domain.Product
// @Failure      400 {object} json.ErrorResponse "Invalid product"
// @Failure      507 {object} json.ErrorResponse "Store is full"
// @Router       /products [post]
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	product, err := domain.NewProduct(req.input())
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.productRepository.Create(r.Context(), product); err != nil {
		h.writeRepositoryError(w, err, product.ID)
		return
	}

	h.publish(r.Context(), domain.NewProductCreated(product))

	json.Write(w, http.StatusCreated, product)
}

// ListProductsHandler godoc
// @Summary      List products
// @Tags         products
// @Produce      json
// @Success      200 {object} listResponse
// @Router       /products [get]
func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.productRepository.List(r.Context())
	if err != nil {
		h.writeRepositoryError(w, err, "")
		return
	}

	json.Write(w, http.StatusOK, listResponse{Products: products, Count: len(products)})
}

// GetProductHandler godoc
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Param        productId path string true "Product ID"
// @Success      200 {object} domain.Product
// @Failure      404 {object} json.ErrorResponse "Product not found"
// @Router       /products/{productId} [get]
func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	product, err := h.productRepository.GetByID(r.Context(), productID)
	if err != nil {
		h.writeRepositoryError(w, err, productID)
		return
	}

	json.Write(w, http.StatusOK, product)
}

// UpdateProductHandler godoc
// @Summary      Replace a product
// @Description  Replaces the descriptive fields and announces the new state to the product's viewers. Stock is changed through the stock endpoint.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        productId path string true "Product ID"
// @Param        request body updateRequest true "Product fields"
// @Success      200 {object} domain.Product
// @Failure      400 {object} json.ErrorResponse "Invalid product"
// @Failure      404 {object} json.ErrorResponse "Product not found"
// @Router       /products/{productId} [put]
func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req updateRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	product, err := h.productRepository.GetByID(ctx, productID)
	if err != nil {
		h.writeRepositoryError(w, err, productID)
		return
	}

	if err := product.Apply(req.input()); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.productRepository.Update(ctx, product); err != nil {
		h.writeRepositoryError(w, err, productID)
		return
	}

	h.publish(ctx, domain.NewProductUpdated(product))

	json.Write(w, http.StatusOK, product)
}

// DeleteProductHandler godoc
// @Summary      Delete a product
// @Tags         products
// @Param        productId path string true "Product ID"
// @Success      204
// @Failure      404 {object} json.ErrorResponse "Product not found"
// @Router       /products/{productId} [delete]
func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	deleted, err := h.productRepository.Delete(r.Context(), productID)
	if err != nil {
		h.writeRepositoryError(w, err, productID)
		return
	}

	h.publish(r.Context(), domain.NewProductDeleted(deleted.ID))

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStockHandler godoc
// @Summary      Change stock
// @Description  Sets an absolute stock level ({"stock":7}) or applies a delta ({"delta":-3})
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        productId path string true "Product ID"
// @Param        request body stockRequest true "Stock change"
// @Success      200 {object} stockResponse
// @Failure      400 {object} json.ErrorResponse "Invalid request"
// @Failure      404 {object} json.ErrorResponse "Product not found"
// @Failure      409 {object} json.ErrorResponse "Stock would go negative"
// @Router       /products/{productId}/stock [patch]
func (h *Handler) UpdateStockHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req stockRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if (req.Stock == nil) == (req.Delta == nil) {
		json.WriteBadRequestError(w, "exactly one of stock or delta is required")
		return
	}

	ctx := r.Context()
	var (
		previous, current int64
		err               error
	)
	if req.Stock != nil {
		if *req.Stock < 0 {
			json.WriteBadRequestError(w, "stock: must not be negative")
			return
		}
		current = *req.Stock
		previous, err = h.productRepository.SetStock(ctx, productID, current)
	} else {
		previous, current, err = h.productRepository.AddStock(ctx, productID, *req.Delta)
	}
	if err != nil {
		h.writeRepositoryError(w, err, productID)
		return
	}

	h.publish(ctx, domain.NewStockChanged(productID, previous, current))

	json.Write(w, http.StatusOK, stockResponse{
		ID:            productID,
		Stock:         current,
		PreviousStock: previous,
	})
}

// publish runs after the repository has committed. Failures are logged and never
// reach the HTTP response.
func (h *Handler) publish(ctx context.Context, evt domain.CatalogEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, evt); err != nil {
		h.logger.Error(logging.Realtime, logging.Emission, "failed to publish catalog event", map[logging.ExtraKey]any{
			logging.EventKind:    string(evt.Kind()),
			logging.ProductID:    evt.EntityID(),
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	h.logger.Debug(logging.General, logging.Mutation, "catalog event published", map[logging.ExtraKey]any{
		logging.EventKind: string(evt.Kind()),
		logging.ProductID: evt.EntityID(),
	})
}

func (h *Handler) writeRepositoryError(w http.ResponseWriter, err error, productID string) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		json.WriteNotFoundError(w, err)
	case errors.Is(err, domain.ErrInsufficientStock):
		json.WriteConflictError(w, err)
	case errors.Is(err, domain.ErrProductAlreadyExists):
		json.WriteConflictError(w, err)
	case errors.Is(err, domain.ErrInvalidInput):
		json.WriteValidationError(w, err)
	case errors.Is(err, domain.ErrStoreFull):
		json.WriteError(w, http.StatusInsufficientStorage, err, "Product store is full")
	default:
		h.logger.Error(logging.General, logging.Mutation, "product repository error", map[logging.ExtraKey]any{
			logging.ProductID:    productID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
	}
}
