package routing

import (
	"context"
	"testing"

	"leadmarket_backend/platform/geo"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeSource struct {
	candidates []Candidate
	err        error
}

func (f *fakeSource) FindActiveByCategory(_ context.Context, _, _ string) ([]Candidate, error) {
	return f.candidates, f.err
}

type fakeGeocoder struct {
	coords geo.Coordinates
	found  bool
	err    error
}

func (f *fakeGeocoder) Geocode(_ context.Context, _, _, _ string) (geo.Coordinates, bool, error) {
	return f.coords, f.found, f.err
}

type fakeEnqueuer struct {
	enqueued []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueBusinessGeocode(_ context.Context, businessID uuid.UUID) error {
	f.enqueued = append(f.enqueued, businessID)
	return nil
}

func ptr(v float64) *float64 { return &v }

// Austin, TX and two candidates: one nearby, one in Dallas (~300km away).
var (
	austin = geo.Coordinates{Lat: 30.2672, Lng: -97.7431}
	dallas = geo.Coordinates{Lat: 32.7767, Lng: -96.7970}
)

func newTestResolver(source CandidateSource, geocoder geo.Geocoder, enqueuer GeocodeEnqueuer) *Resolver {
	return NewResolver(source, geocoder, enqueuer, 50, logger.New("development"))
}

func TestResolveFiltersByDistance(t *testing.T) {
	near := Candidate{BusinessID: uuid.New(), Latitude: ptr(30.30), Longitude: ptr(-97.70)}
	far := Candidate{BusinessID: uuid.New(), Latitude: ptr(dallas.Lat), Longitude: ptr(dallas.Lng)}

	resolver := newTestResolver(
		&fakeSource{candidates: []Candidate{near, far}},
		&fakeGeocoder{coords: austin, found: true},
		nil,
	)

	eligible, err := resolver.Resolve(context.Background(), RequestLocation{Category: "roofing", Zip: "78701"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 1 || eligible[0].BusinessID != near.BusinessID {
		t.Fatalf("expected only the nearby candidate, got %d candidates", len(eligible))
	}
}

func TestResolveExcludesUngeocodedAndEnqueues(t *testing.T) {
	ungeocoded := Candidate{BusinessID: uuid.New()}
	enqueuer := &fakeEnqueuer{}

	resolver := newTestResolver(
		&fakeSource{candidates: []Candidate{ungeocoded}},
		&fakeGeocoder{coords: austin, found: true},
		enqueuer,
	)

	eligible, err := resolver.Resolve(context.Background(), RequestLocation{Category: "roofing", Zip: "78701"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("ungeocoded candidate must be excluded from distance-limited results")
	}
	if len(enqueuer.enqueued) != 1 || enqueuer.enqueued[0] != ungeocoded.BusinessID {
		t.Errorf("expected a geocode task for the ungeocoded business")
	}
}

func TestResolveFallsBackToAreaMatch(t *testing.T) {
	sameZipArea := Candidate{BusinessID: uuid.New(), Zip: "78745"}
	sameCity := Candidate{BusinessID: uuid.New(), City: "Austin"}
	elsewhere := Candidate{BusinessID: uuid.New(), Zip: "75201", City: "Dallas"}

	resolver := newTestResolver(
		&fakeSource{candidates: []Candidate{sameZipArea, sameCity, elsewhere}},
		&fakeGeocoder{found: false},
		nil,
	)

	eligible, err := resolver.Resolve(context.Background(), RequestLocation{Category: "roofing", Zip: "78701", City: "austin"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("expected 2 area-matched candidates, got %d", len(eligible))
	}
}

func TestResolveEmptyIsNotAnError(t *testing.T) {
	resolver := newTestResolver(&fakeSource{}, &fakeGeocoder{found: true, coords: austin}, nil)

	eligible, err := resolver.Resolve(context.Background(), RequestLocation{Category: "roofing"})
	if err != nil {
		t.Fatalf("empty candidate list must not error: %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("expected no candidates")
	}
}

func TestResolveRequestRadiusOverridesCandidateRadius(t *testing.T) {
	// ~11km from the origin; candidate advertises a 5km service radius but
	// the request explicitly allows 25km.
	cand := Candidate{BusinessID: uuid.New(), Latitude: ptr(30.36), Longitude: ptr(-97.80), ServiceRadiusKM: 5}

	resolver := newTestResolver(
		&fakeSource{candidates: []Candidate{cand}},
		&fakeGeocoder{coords: austin, found: true},
		nil,
	)

	eligible, err := resolver.Resolve(context.Background(), RequestLocation{Category: "roofing", RadiusKM: 25})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 1 {
		t.Errorf("request radius should override the candidate's own radius")
	}
}
