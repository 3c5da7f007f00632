// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultConnectTimeout is the default connection timeout
	DefaultConnectTimeout = 10 * time.Second
	// DefaultQueryTimeout bounds every store operation
	DefaultQueryTimeout = 30 * time.Second
	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 10
)

// MongoStores bundles the three Mongo-backed collaborators sharing one client.
type MongoStores struct {
	Customers CustomerStore
	Products  ProductStore
	Orders    OrderStore

	client *mongo.Client
}

// MongoConfig configures the shared MongoDB connection.
type MongoConfig struct {
	URI      string
	Database string
}

// mongoBase holds the pieces shared by the per-collection stores.
type mongoBase struct {
	db     *mongo.Database
	logger *log.Logger
}

// ConnectMongo opens the shared MongoDB client and returns the three stores.
// The connection is verified with a ping before any store is handed out.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoStores, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database name is required")
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(DefaultMaxPoolSize).
		SetMinPoolSize(DefaultMinPoolSize).
		SetConnectTimeout(DefaultConnectTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetAppName("Mercadia-Gateway")

	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	base := &mongoBase{
		db:     client.Database(cfg.Database),
		logger: log.New(os.Stdout, "[STORE] ", log.LstdFlags),
	}

	base.logger.Printf("Connected to MongoDB (database=%s)", cfg.Database)

	return &MongoStores{
		Customers: &mongoCustomerStore{base},
		Products:  &mongoProductStore{base},
		Orders:    &mongoOrderStore{base},
		client:    client,
	}, nil
}

// Close disconnects the shared client.
func (s *MongoStores) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(disconnectCtx)
}

// Ping verifies the underlying connection is still healthy.
func (s *MongoStores) Ping(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("mongo client not connected")
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// Document shapes. Neighborhood, city, category and unit names are embedded
// denormalized on write by the owning services, so reads need no joins.

type customerDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	Phone        string             `bson:"phone"`
	Address      string             `bson:"address"`
	Neighborhood struct {
		Name string `bson:"name"`
		City struct {
			Name string `bson:"name"`
		} `bson:"city"`
	} `bson:"neighborhood"`
	IsActive bool `bson:"isActive"`
}

func (d customerDoc) toCustomer() Customer {
	return Customer{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		Address:      d.Address,
		Neighborhood: d.Neighborhood.Name,
		City:         d.Neighborhood.City.Name,
		IsActive:     d.IsActive,
	}
}

type productDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Stock       int                `bson:"stock"`
	Category    struct {
		Name string `bson:"name"`
	} `bson:"category"`
	Unit struct {
		Name string `bson:"name"`
	} `bson:"unit"`
	IsActive bool `bson:"isActive"`
}

func (d productDoc) toProduct() Product {
	return Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		Category:    d.Category.Name,
		Unit:        d.Unit.Name,
		IsActive:    d.IsActive,
	}
}

type orderDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Customer struct {
		Name string `bson:"name"`
	} `bson:"customer"`
	Items []struct {
		ProductName string  `bson:"productName"`
		Quantity    int     `bson:"quantity"`
		UnitPrice   float64 `bson:"unitPrice"`
	} `bson:"items"`
	Total  float64   `bson:"total"`
	Status string    `bson:"status"`
	Date   time.Time `bson:"date"`
}

func (d orderDoc) toOrder() Order {
	o := Order{
		ID:           d.ID.Hex(),
		CustomerName: d.Customer.Name,
		Total:        d.Total,
		Status:       d.Status,
		Date:         d.Date,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, OrderItem{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return o
}

// caseInsensitive builds a case-insensitive contains filter for a field.
// The term is quoted so user input is never interpreted as a pattern.
func caseInsensitive(field, term string) bson.M {
	return bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}
}

type mongoCustomerStore struct {
	*mongoBase
}

func (s *mongoCustomerStore) collection() *mongo.Collection {
	return s.db.Collection("customers")
}

func (s *mongoCustomerStore) List(ctx context.Context, p Pagination) ([]Customer, int64, error) {
	return s.find(ctx, bson.M{}, p)
}

func (s *mongoCustomerStore) GetByID(ctx context.Context, id string) (*Customer, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id can never match a document
		return nil, ErrNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var doc customerDoc
	err = s.collection().FindOne(opCtx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("customer lookup failed: %w", err)
	}

	c := doc.toCustomer()
	return &c, nil
}

func (s *mongoCustomerStore) Search(ctx context.Context, q CustomerQuery) ([]Customer, int64, error) {
	filter := bson.M{"$or": bson.A{
		caseInsensitive("name", q.Term),
		caseInsensitive("email", q.Term),
	}}
	return s.find(ctx, filter, q.Pagination)
}

func (s *mongoCustomerStore) find(ctx context.Context, filter bson.M, p Pagination) ([]Customer, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	coll := s.collection()

	total, err := coll.CountDocuments(opCtx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("customer count failed: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit)).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := coll.Find(opCtx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("customer query failed: %w", err)
	}
	defer func() { _ = cursor.Close(opCtx) }()

	var customers []Customer
	for cursor.Next(opCtx) {
		var doc customerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("customer decode failed: %w", err)
		}
		customers = append(customers, doc.toCustomer())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("customer cursor failed: %w", err)
	}

	return customers, total, nil
}

type mongoProductStore struct {
	*mongoBase
}

func (s *mongoProductStore) collection() *mongo.Collection {
	return s.db.Collection("products")
}

func (s *mongoProductStore) List(ctx context.Context, p Pagination) ([]Product, int64, error) {
	return s.find(ctx, bson.M{}, p)
}

func (s *mongoProductStore) GetByID(ctx context.Context, id string) (*Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var doc productDoc
	err = s.collection().FindOne(opCtx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}

	prod := doc.toProduct()
	return &prod, nil
}

func (s *mongoProductStore) Search(ctx context.Context, q ProductQuery) ([]Product, int64, error) {
	filter := bson.M{"$or": bson.A{
		caseInsensitive("name", q.Term),
		caseInsensitive("description", q.Term),
	}}
	return s.find(ctx, filter, q.Pagination)
}

func (s *mongoProductStore) find(ctx context.Context, filter bson.M, p Pagination) ([]Product, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	coll := s.collection()

	total, err := coll.CountDocuments(opCtx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("product count failed: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit)).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := coll.Find(opCtx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("product query failed: %w", err)
	}
	defer func() { _ = cursor.Close(opCtx) }()

	var products []Product
	for cursor.Next(opCtx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("product decode failed: %w", err)
		}
		products = append(products, doc.toProduct())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("product cursor failed: %w", err)
	}

	return products, total, nil
}

type mongoOrderStore struct {
	*mongoBase
}

func (s *mongoOrderStore) collection() *mongo.Collection {
	return s.db.Collection("orders")
}

func (s *mongoOrderStore) List(ctx context.Context, p Pagination) ([]Order, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	coll := s.collection()

	total, err := coll.CountDocuments(opCtx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("order count failed: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit)).
		SetSort(bson.D{{Key: "date", Value: -1}})

	cursor, err := coll.Find(opCtx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("order query failed: %w", err)
	}
	defer func() { _ = cursor.Close(opCtx) }()

	var orders []Order
	for cursor.Next(opCtx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("order decode failed: %w", err)
		}
		orders = append(orders, doc.toOrder())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("order cursor failed: %w", err)
	}

	return orders, total, nil
}
