package routing

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/tasks"
	"leadmarket_backend/platform/geo"
	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// GeocodeWorker resolves cached coordinates for businesses, off the
// request path. Until it runs, the business stays excluded from
// distance-limited candidate queries.
type GeocodeWorker struct {
	repo     *Repository
	geocoder geo.Geocoder
	log      *logger.Logger
}

// NewGeocodeWorker creates the geocode task handler.
func NewGeocodeWorker(repo *Repository, geocoder geo.Geocoder, log *logger.Logger) *GeocodeWorker {
	return &GeocodeWorker{repo: repo, geocoder: geocoder, log: log}
}

// HandleBusinessGeocodeTask is the asynq handler for geocode tasks.
func (w *GeocodeWorker) HandleBusinessGeocodeTask(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseBusinessGeocode(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	zip, city, state, err := w.repo.GetBusinessLocation(ctx, payload.BusinessID)
	if err != nil {
		return err
	}

	coords, found, err := w.geocoder.Geocode(ctx, zip, city, state)
	if err != nil {
		return fmt.Errorf("geocode business %s: %w", payload.BusinessID, err)
	}
	if !found {
		// Address cannot be resolved; retrying will not change that.
		w.log.Warn("business address not geocodable", "business_id", payload.BusinessID, "zip", zip, "city", city)
		return nil
	}

	if err := w.repo.UpdateCoordinates(ctx, payload.BusinessID, coords.Lat, coords.Lng); err != nil {
		return err
	}

	w.log.Info("business geocoded", "business_id", payload.BusinessID, "lat", coords.Lat, "lng", coords.Lng)
	return nil
}
