package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	productsCollection = "products"
	couponsCollection  = "coupons"
)

// productDocument is the catalog service's product shape. Only the fields
// the cart reads are mapped.
type productDocument struct {
	ID        string               `bson:"_id"`
	Name      string               `bson:"name"`
	SKU       string               `bson:"sku"`
	Price     primitive.Decimal128 `bson:"price"`
	StoreID   string               `bson:"store_id"`
	StoreName string               `bson:"store_name"`
	Weight    primitive.Decimal128 `bson:"weight,omitempty"`
	DeletedAt *time.Time           `bson:"deleted_at,omitempty"`
}

type couponDocument struct {
	Code        string               `bson:"_id"`
	Kind        string               `bson:"kind"`
	Value       primitive.Decimal128 `bson:"value"`
	MinSubtotal primitive.Decimal128 `bson:"min_subtotal,omitempty"`
	Active      bool                 `bson:"active"`
	ExpiresAt   *time.Time           `bson:"expires_at,omitempty"`
}

// MongoCatalog reads products and coupons owned by the catalog service.
type MongoCatalog struct {
	client   *mongo.Client
	products *mongo.Collection
	coupons  *mongo.Collection
}

// OpenMongoCatalog connects to the catalog database. The cart only reads it,
// so lookups may be served by secondaries.
func OpenMongoCatalog(ctx context.Context, uri, database string) (*MongoCatalog, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("cart-checkout").
		SetReadPreference(readpref.SecondaryPreferred()).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	m := NewMongoCatalog(client.Database(database))
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{
		client:   db.Client(),
		products: db.Collection(productsCollection),
		coupons:  db.Collection(couponsCollection),
	}
}

// Ping checks that a member able to serve catalog reads is reachable.
func (m *MongoCatalog) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.SecondaryPreferred()); err != nil {
		return fmt.Errorf("failed to ping catalog: %w", err)
	}
	return nil
}

func (m *MongoCatalog) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoCatalog) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDocument
	filter := bson.M{"_id": productID, "deleted_at": nil}
	err := m.products.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundf("product %s", productID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	price, err := toDecimal(doc.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", productID, err)
	}
	weight, err := toDecimal(doc.Weight)
	if err != nil {
		return nil, fmt.Errorf("product %s weight: %w", productID, err)
	}

	return &domain.Product{
		ID:        doc.ID,
		Name:      doc.Name,
		SKU:       doc.SKU,
		Price:     price,
		StoreID:   doc.StoreID,
		StoreName: doc.StoreName,
		Weight:    weight,
	}, nil
}

func (m *MongoCatalog) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var doc couponDocument
	err := m.coupons.FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundf("coupon %s", code)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	value, err := toDecimal(doc.Value)
	if err != nil {
		return nil, fmt.Errorf("coupon %s value: %w", code, err)
	}
	minSubtotal, err := toDecimal(doc.MinSubtotal)
	if err != nil {
		return nil, fmt.Errorf("coupon %s min subtotal: %w", code, err)
	}

	return &domain.Coupon{
		Code:        doc.Code,
		Kind:        domain.CouponKind(doc.Kind),
		Value:       value,
		MinSubtotal: minSubtotal,
		Active:      doc.Active,
		ExpiresAt:   doc.ExpiresAt,
	}, nil
}

func toDecimal(d primitive.Decimal128) (decimal.Decimal, error) {
	if d == (primitive.Decimal128{}) {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(d.String())
}
