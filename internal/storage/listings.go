package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raine/vintifi/internal/adapter"
)

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// UpsertListing inserts a new listing (empty ID) or updates one the user
// owns. Updating another user's listing returns ErrNotFound.
func (s *SQLiteStore) UpsertListing(userID string, d adapter.ListingDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = "draft"
	}
	photos, err := json.Marshal(orEmpty(d.Photos))
	if err != nil {
		return "", fmt.Errorf("failed to marshal photos: %w", err)
	}
	hashtags, err := json.Marshal(orEmpty(d.Hashtags))
	if err != nil {
		return "", fmt.Errorf("failed to marshal hashtags: %w", err)
	}
	now := s.now()

	res, err := s.db.Exec(`
		INSERT INTO listings (id, user_id, title, description, brand, category, size, condition, colour,
			source_url, photos, hashtags, price, suggested_price, price_low, price_high, price_strategy,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			brand = excluded.brand,
			category = excluded.category,
			size = excluded.size,
			condition = excluded.condition,
			colour = excluded.colour,
			source_url = excluded.source_url,
			photos = excluded.photos,
			hashtags = excluded.hashtags,
			price = excluded.price,
			suggested_price = excluded.suggested_price,
			price_low = excluded.price_low,
			price_high = excluded.price_high,
			price_strategy = excluded.price_strategy,
			status = excluded.status,
			updated_at = excluded.updated_at
		WHERE listings.user_id = excluded.user_id
	`, d.ID, userID, d.Title, d.Description, d.Brand, d.Category, d.Size, d.Condition, d.Colour,
		d.SourceURL, string(photos), string(hashtags), nullFloat(d.Price), nullFloat(d.SuggestedPrice),
		nullFloat(d.PriceLow), nullFloat(d.PriceHigh), d.PriceStrategy, d.Status, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return d.ID, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const listingColumns = `id, user_id, title, description, brand, category, size, condition, colour, source_url,
	photos, hashtags, price, suggested_price, price_low, price_high, price_strategy, status, created_at, updated_at`

func scanListing(row rowScanner) (*adapter.Listing, error) {
	var l adapter.Listing
	var photos, hashtags string
	var price, suggested, low, high sql.NullFloat64
	var createdAt, updatedAt time.Time
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.Description, &l.Brand, &l.Category, &l.Size, &l.Condition,
		&l.Colour, &l.SourceURL, &photos, &hashtags, &price, &suggested, &low, &high, &l.PriceStrategy,
		&l.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
	}
	if err := json.Unmarshal([]byte(hashtags), &l.Hashtags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hashtags: %w", err)
	}
	l.Price = floatPtr(price)
	l.SuggestedPrice = floatPtr(suggested)
	l.PriceLow = floatPtr(low)
	l.PriceHigh = floatPtr(high)
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt
	return &l, nil
}

// GetListing returns the user's listing or nil, nil.
func (s *SQLiteStore) GetListing(userID, id string) (*adapter.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := scanListing(s.db.QueryRow(
		"SELECT "+listingColumns+" FROM listings WHERE id = ? AND user_id = ?", id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing: %w", err)
	}
	return l, nil
}

// ListListings returns the user's listings, most recently updated first.
func (s *SQLiteStore) ListListings(userID string) ([]adapter.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+listingColumns+" FROM listings WHERE user_id = ? ORDER BY updated_at DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []adapter.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
