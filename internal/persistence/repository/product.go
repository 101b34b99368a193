package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productRepository struct {
	db *mongo.Database
}

func NewProductRepository(db *mongo.Database) domain.ProductRepository {
	return &productRepository{
		db: db,
	}
}

func (r *productRepository) collection() *mongo.Collection {
	return r.db.Collection(db.ProductsCollection)
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product == nil || product.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := r.collection().InsertOne(ctx, product)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrProductAlreadyExists
	}
	return err
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	var product domain.Product
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]domain.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	if product == nil || product.ID == "" {
		return domain.ErrInvalidInput
	}

	update := bson.M{
		"$set": bson.M{
			"name":        product.Name,
			"description": product.Description,
			"category":    product.Category,
			"image_url":   product.ImageURL,
			"price":       product.Price,
			"updated_at":  product.UpdatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var stored domain.Product
	err := r.collection().FindOneAndUpdate(ctx, bson.M{"_id": product.ID}, update, opts).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return err
	}

	product.Stock = stored.Stock
	product.CreatedAt = stored.CreatedAt

	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	var product domain.Product
	err := r.collection().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// SetStock swaps the stock level and reads back the document as it was before.
func (r *productRepository) SetStock(ctx context.Context, id string, stock int64) (int64, error) {
	if id == "" || stock < 0 {
		return 0, domain.ErrInvalidInput
	}

	update := bson.M{"$set": bson.M{"stock": stock, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before domain.Product
	err := r.collection().FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}

	return before.Stock, nil
}

// AddStock increments in one round trip. The filter only matches while the
// result stays within [0, MaxInt64], so concurrent decrements cannot oversell.
func (r *productRepository) AddStock(ctx context.Context, id string, delta int64) (int64, int64, error) {
	if id == "" || delta == math.MinInt64 {
		return 0, 0, domain.ErrInvalidInput
	}

	filter := bson.M{"_id": id}
	switch {
	case delta < 0:
		filter["stock"] = bson.M{"$gte": -delta}
	case delta > 0:
		filter["stock"] = bson.M{"$lte": math.MaxInt64 - delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var after domain.Product
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&after)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return 0, 0, getErr
		}
		if _, err := domain.AddStock(current.Stock, delta); err != nil {
			return current.Stock, current.Stock, err
		}
		return current.Stock, current.Stock, domain.ErrInsufficientStock
	}
	if err != nil {
		return 0, 0, err
	}

	return after.Stock - delta, after.Stock, nil
}
