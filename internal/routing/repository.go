package routing

import (
	"context"
	"fmt"

	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
)

// Repository reads provider candidates from PostgreSQL.
type Repository struct {
	q db.Querier
}

// New creates a routing repository.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

// FindActiveByCategory returns all active, owned businesses categorized
// under the given category, joined with any active subscription's priority
// boost. Subscriptions past their period end do not contribute a boost even
// when their status has not been corrected yet.
func (r *Repository) FindActiveByCategory(ctx context.Context, category, subCategory string) ([]Candidate, error) {
	query := `
		SELECT b.id, b.name, b.owner_id, u.name, u.email,
		       b.zip, b.city, b.state, b.latitude, b.longitude,
		       COALESCE(b.service_radius_km, 0),
		       COALESCE(b.rating, 0), COALESCE(b.rating_count, 0), b.featured,
		       COALESCE(p.priority_boost, 0)
		FROM businesses b
		JOIN users u ON u.id = b.owner_id
		JOIN business_categories bc ON bc.business_id = b.id
		LEFT JOIN user_subscriptions s ON s.user_id = b.owner_id
			AND s.status IN ('ACTIVE', 'TRIAL')
			AND s.current_period_end > now()
		LEFT JOIN subscription_plans p ON p.id = s.plan_id
		WHERE b.active = true
			AND bc.category = $1
			AND ($2 = '' OR bc.sub_category IS NULL OR bc.sub_category = $2)`

	rows, err := r.q.Query(ctx, query, category, subCategory)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		err := rows.Scan(
			&c.BusinessID, &c.BusinessName, &c.OwnerID, &c.OwnerName, &c.OwnerEmail,
			&c.Zip, &c.City, &c.State, &c.Latitude, &c.Longitude,
			&c.ServiceRadiusKM, &c.Rating, &c.RatingCount, &c.Featured,
			&c.PriorityBoost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// UpdateCoordinates stores geocoded coordinates for a business.
func (r *Repository) UpdateCoordinates(ctx context.Context, businessID uuid.UUID, lat, lng float64) error {
	query := `UPDATE businesses SET latitude = $2, longitude = $3, updated_at = now() WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, businessID, lat, lng); err != nil {
		return fmt.Errorf("update business coordinates: %w", err)
	}
	return nil
}

// GetBusinessLocation returns the address fields used for geocoding.
func (r *Repository) GetBusinessLocation(ctx context.Context, businessID uuid.UUID) (zip, city, state string, err error) {
	query := `SELECT COALESCE(zip, ''), COALESCE(city, ''), COALESCE(state, '') FROM businesses WHERE id = $1`

	if err := r.q.QueryRow(ctx, query, businessID).Scan(&zip, &city, &state); err != nil {
		return "", "", "", fmt.Errorf("get business location: %w", err)
	}
	return zip, city, state, nil
}
