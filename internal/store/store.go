// Package store keeps every entity as a JSON document in a named collection.
// Drivers only have to implement Documents; typed access goes through
// Collection.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
)

var ErrNotFound = errors.New("document not found")

// Documents is the driver contract: raw JSON bodies addressed by
// (collection, id). List returns bodies ordered by id.
type Documents interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Put(ctx context.Context, collection, id string, body []byte) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([][]byte, error)
}

// Collection is typed access to one entity collection.
type Collection[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]T, error)
}

type jsonCollection[T any] struct {
	docs Documents
	name string
}

// NewCollection returns a Collection that encodes T as JSON.
func NewCollection[T any](docs Documents, name string) Collection[T] {
	return &jsonCollection[T]{docs: docs, name: name}
}

func (c *jsonCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	b, err := c.docs.Get(ctx, c.name, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return v, nil
}

func (c *jsonCollection[T]) Put(ctx context.Context, id string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.docs.Put(ctx, c.name, id, b)
}

func (c *jsonCollection[T]) Delete(ctx context.Context, id string) error {
	return c.docs.Delete(ctx, c.name, id)
}

func (c *jsonCollection[T]) List(ctx context.Context) ([]T, error) {
	bodies, err := c.docs.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(bodies))
	for _, b := range bodies {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Collection names, shared by every driver.
const (
	CollProducts      = "products"
	CollStock         = "stock_items"
	CollMovements     = "stock_movements"
	CollReservations  = "stock_reservations"
	CollOrders        = "orders"
	CollPayments      = "payments"
	CollUsers         = "users"
	CollAddresses     = "addresses"
	CollZones         = "delivery_zones"
	CollDiscounts     = "discount_codes"
	CollNotifications = "notifications"
)

// Repositories aggregates all collections
type Repositories struct {
	Products      Collection[domain.Product]
	Stock         Collection[domain.StockItem]
	Movements     Collection[domain.StockMovement]
	Reservations  Collection[domain.Reservation]
	Orders        Collection[domain.Order]
	Payments      Collection[domain.Payment]
	Users         Collection[domain.User]
	Addresses     Collection[domain.Address]
	Zones         Collection[domain.DeliveryZone]
	Discounts     Collection[domain.DiscountCode]
	Notifications Collection[domain.Notification]
}

func NewRepositories(docs Documents) *Repositories {
	return &Repositories{
		Products:      NewCollection[domain.Product](docs, CollProducts),
		Stock:         NewCollection[domain.StockItem](docs, CollStock),
		Movements:     NewCollection[domain.StockMovement](docs, CollMovements),
		Reservations:  NewCollection[domain.Reservation](docs, CollReservations),
		Orders:        NewCollection[domain.Order](docs, CollOrders),
		Payments:      NewCollection[domain.Payment](docs, CollPayments),
		Users:         NewCollection[domain.User](docs, CollUsers),
		Addresses:     NewCollection[domain.Address](docs, CollAddresses),
		Zones:         NewCollection[domain.DeliveryZone](docs, CollZones),
		Discounts:     NewCollection[domain.DiscountCode](docs, CollDiscounts),
		Notifications: NewCollection[domain.Notification](docs, CollNotifications),
	}
}
