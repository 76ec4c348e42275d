package routing

import (
	"context"
	"strings"

	"leadmarket_backend/platform/geo"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// CandidateSource abstracts the candidate query for testing.
type CandidateSource interface {
	FindActiveByCategory(ctx context.Context, category, subCategory string) ([]Candidate, error)
}

// GeocodeEnqueuer schedules a lazy geocode for a business that has no
// cached coordinates yet. Nil is allowed; the resolver then just skips it.
type GeocodeEnqueuer interface {
	EnqueueBusinessGeocode(ctx context.Context, businessID uuid.UUID) error
}

// Resolver filters eligible candidates down to those within reach of the
// request location.
type Resolver struct {
	source          CandidateSource
	geocoder        geo.Geocoder
	enqueuer        GeocodeEnqueuer
	defaultRadiusKM float64
	log             *logger.Logger
}

// NewResolver creates the eligibility resolver.
func NewResolver(source CandidateSource, geocoder geo.Geocoder, enqueuer GeocodeEnqueuer, defaultRadiusKM float64, log *logger.Logger) *Resolver {
	return &Resolver{
		source:          source,
		geocoder:        geocoder,
		enqueuer:        enqueuer,
		defaultRadiusKM: defaultRadiusKM,
		log:             log,
	}
}

// Resolve returns the candidates eligible for the request. An empty result
// is a legitimate no-provider-available outcome, never an error.
//
// Distance filtering needs coordinates on both sides. When the request
// location cannot be geocoded the resolver degrades to textual zip/city
// matching; candidates without cached coordinates are excluded from
// distance-limited results and queued for lazy geocoding.
func (r *Resolver) Resolve(ctx context.Context, loc RequestLocation) ([]Candidate, error) {
	candidates, err := r.source.FindActiveByCategory(ctx, loc.Category, loc.SubCategory)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	origin, located := r.locateRequest(ctx, loc)

	var eligible []Candidate
	for _, cand := range candidates {
		if !cand.HasCoordinates() {
			r.scheduleGeocode(ctx, cand.BusinessID)
			if !located && r.matchesArea(loc, cand) {
				eligible = append(eligible, cand)
			}
			continue
		}

		if !located {
			if r.matchesArea(loc, cand) {
				eligible = append(eligible, cand)
			}
			continue
		}

		distance := geo.DistanceKM(origin.Lat, origin.Lng, *cand.Latitude, *cand.Longitude)
		if distance <= r.effectiveRadius(loc, cand) {
			eligible = append(eligible, cand)
		}
	}
	return eligible, nil
}

func (r *Resolver) locateRequest(ctx context.Context, loc RequestLocation) (geo.Coordinates, bool) {
	if r.geocoder == nil {
		return geo.Coordinates{}, false
	}
	coords, found, err := r.geocoder.Geocode(ctx, loc.Zip, loc.City, loc.State)
	if err != nil {
		r.log.WithContext(ctx).Warn("request geocode failed", "zip", loc.Zip, "city", loc.City, "error", err)
		return geo.Coordinates{}, false
	}
	return coords, found
}

func (r *Resolver) scheduleGeocode(ctx context.Context, businessID uuid.UUID) {
	if r.enqueuer == nil {
		return
	}
	if err := r.enqueuer.EnqueueBusinessGeocode(ctx, businessID); err != nil {
		r.log.WithContext(ctx).Warn("enqueue business geocode failed", "business_id", businessID, "error", err)
	}
}

// effectiveRadius prefers the request's explicit radius, then the
// candidate's own service radius, then the configured default.
func (r *Resolver) effectiveRadius(loc RequestLocation, cand Candidate) float64 {
	if loc.RadiusKM > 0 {
		return loc.RadiusKM
	}
	if cand.ServiceRadiusKM > 0 {
		return cand.ServiceRadiusKM
	}
	return r.defaultRadiusKM
}

// matchesArea is the textual fallback: same zip prefix or same city.
func (r *Resolver) matchesArea(loc RequestLocation, cand Candidate) bool {
	if loc.Zip != "" && cand.Zip != "" {
		reqPrefix, candPrefix := zipPrefix(loc.Zip), zipPrefix(cand.Zip)
		if reqPrefix != "" && reqPrefix == candPrefix {
			return true
		}
	}
	if loc.City != "" && strings.EqualFold(strings.TrimSpace(loc.City), strings.TrimSpace(cand.City)) {
		return true
	}
	return false
}

func zipPrefix(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) < 3 {
		return ""
	}
	return strings.ToUpper(zip[:3])
}
