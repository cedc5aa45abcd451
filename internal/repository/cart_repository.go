package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartprice/internal/db"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/shopspring/decimal"
	"time"
)

type cartRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) (port.CartRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &cartRepository{
		q:    db.New(pool),
		pool: pool,
	}, nil
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *cartRepository) GetCart(ctx context.Context, ownerID, cartName string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}
	if cartName == "" {
		return domain.Cart{}, fmt.Errorf("cartName is empty")
	}

	rows, err := r.q.GetCart(ctx, db.GetCartParams{
		OwnerID:  ownerID,
		CartName: cartName,
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.GetCart: %w", err)
	}

	items, err := mapGetCartRowsToDomain(rows)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("mapGetCartRowsToDomain: %w", err)
	}

	return domain.Cart{
		OwnerID: ownerID,
		Name:    cartName,
		Items:   items,
	}, nil
}

func (r *cartRepository) SaveItems(ctx context.Context, ownerID string, items ...domain.CartItem) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}
	if len(items) == 0 {
		return nil
	}

	params := make([]db.UpsertItemParams, 0, len(items))
	for _, item := range items {
		p, err := mapDomainToUpsertParams(ownerID, item)
		if err != nil {
			return fmt.Errorf("mapDomainToUpsertParams: %w", err)
		}
		params = append(params, p)
	}

	_, err := withTx(ctx, r.pool, r.q, func(q *db.Queries) (struct{}, error) {
		for _, p := range params {
			if err := q.UpsertItem(ctx, p); err != nil {
				return struct{}{}, fmt.Errorf("q.UpsertItem: %w", err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (r *cartRepository) DeleteItems(ctx context.Context, ownerID, cartName string, keys ...string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("ownerID is empty")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	rowsAffected, err := r.q.DeleteItems(ctx, db.DeleteItemsParams{
		OwnerID:  ownerID,
		CartName: cartName,
		ItemKeys: keys,
	})
	if err != nil {
		return 0, fmt.Errorf("q.DeleteItems: %w", err)
	}

	return rowsAffected, nil
}

func (r *cartRepository) DeleteCart(ctx context.Context, ownerID, cartName string) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	if _, err := r.q.DeleteCart(ctx, db.DeleteCartParams{
		OwnerID:  ownerID,
		CartName: cartName,
	}); err != nil {
		return fmt.Errorf("q.DeleteCart: %w", err)
	}

	return nil
}

func mapDomainToUpsertParams(ownerID string, item domain.CartItem) (db.UpsertItemParams, error) {
	if item.Key == "" {
		return db.UpsertItemParams{}, fmt.Errorf("item key is empty")
	}
	if item.CartName == "" {
		return db.UpsertItemParams{}, fmt.Errorf("cartName is empty")
	}
	if item.Quantity < 1 || item.Quantity > math.MaxInt32 {
		return db.UpsertItemParams{}, fmt.Errorf("item quantity %d is out of range", item.Quantity)
	}

	options, err := marshalJSON(item.Options, "{}")
	if err != nil {
		return db.UpsertItemParams{}, fmt.Errorf("options: %w", err)
	}
	extras, err := marshalJSON(item.Extras, "[]")
	if err != nil {
		return db.UpsertItemParams{}, fmt.Errorf("extras: %w", err)
	}
	customData, err := marshalJSON(item.CustomData, "{}")
	if err != nil {
		return db.UpsertItemParams{}, fmt.Errorf("custom data: %w", err)
	}
	files, err := marshalJSON(item.Files, "[]")
	if err != nil {
		return db.UpsertItemParams{}, fmt.Errorf("files: %w", err)
	}

	p := db.UpsertItemParams{
		OwnerID:    ownerID,
		CartName:   item.CartName,
		ItemKey:    item.Key,
		ProductID:  item.ProductID,
		VariantID:  item.VariantID,
		Options:    options,
		Extras:     extras,
		Quantity:   int32(item.Quantity),
		Postponed:  item.Postponed,
		CustomData: customData,
		Files:      files,
		CreatedAt:  item.CreatedAt,
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if item.BundleMasterKey != "" {
		key := item.BundleMasterKey
		p.BundleMasterKey = &key
	}
	if item.PriceOverride != nil {
		p.PriceOverride = decimal.NullDecimal{Decimal: *item.PriceOverride, Valid: true}
	}

	return p, nil
}

func marshalJSON[T any](v T, empty string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

func mapGetCartRowToDomain(row db.GetCartRow) (domain.CartItem, error) {
	item := domain.CartItem{
		Key:       row.ItemKey,
		CartName:  row.CartName,
		ProductID: row.ProductID,
		VariantID: row.VariantID,
		Quantity:  int(row.Quantity),
		Postponed: row.Postponed,
		CreatedAt: row.CreatedAt,
	}

	if err := unmarshalJSON(row.Options, &item.Options); err != nil {
		return domain.CartItem{}, fmt.Errorf("options of item[%s]: %w", row.ItemKey, err)
	}
	if err := unmarshalJSON(row.Extras, &item.Extras); err != nil {
		return domain.CartItem{}, fmt.Errorf("extras of item[%s]: %w", row.ItemKey, err)
	}
	if err := unmarshalJSON(row.CustomData, &item.CustomData); err != nil {
		return domain.CartItem{}, fmt.Errorf("custom data of item[%s]: %w", row.ItemKey, err)
	}
	if err := unmarshalJSON(row.Files, &item.Files); err != nil {
		return domain.CartItem{}, fmt.Errorf("files of item[%s]: %w", row.ItemKey, err)
	}

	if row.BundleMasterKey != nil {
		item.BundleMasterKey = *row.BundleMasterKey
	}
	if row.PriceOverride.Valid {
		price := row.PriceOverride.Decimal
		item.PriceOverride = &price
	}

	return item, nil
}

// unmarshalJSON leaves dst nil for empty objects and arrays.
func unmarshalJSON[T any](data []byte, dst *T) error {
	switch string(data) {
	case "", "{}", "[]", "null":
		return nil
	}
	return json.Unmarshal(data, dst)
}

func mapGetCartRowsToDomain(rows []db.GetCartRow) ([]domain.CartItem, error) {
	var items []domain.CartItem

	for _, row := range rows {
		item, err := mapGetCartRowToDomain(row)
		if err != nil {
			return nil, fmt.Errorf("mapGetCartRowToDomain: %w", err)
		}

		items = append(items, item)
	}

	return items, nil
}
