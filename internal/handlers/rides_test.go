package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"rideon-backend/internal/middleware"
	"rideon-backend/internal/models"
	"rideon-backend/internal/services"
)

// memStore backs the REST tests with in-memory rides and users, using
// the same conditional-update semantics as the SQL store.
type memStore struct {
	mu     sync.Mutex
	rides  map[string]*models.Ride
	users  map[string]*models.User
	nextID int
}

func newMemStore() *memStore {
	return &memStore{rides: make(map[string]*models.Ride), users: make(map[string]*models.User)}
}

func (m *memStore) InsertRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *memStore) GetRideByID(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRidesByPassenger(ctx context.Context, passengerID string) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.PassengerID == passengerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListRidesByRider(ctx context.Context, riderID string) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.RiderID != nil && *r.RiderID == riderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) AssignRider(ctx context.Context, rideID, riderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusRequested || r.RiderID != nil {
		return false, nil
	}
	r.RiderID = &riderID
	r.Status = models.StatusAccepted
	return true, nil
}

func (m *memStore) MarkStarted(ctx context.Context, rideID string, startTime int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusAccepted {
		return false, nil
	}
	r.Status = models.StatusInProgress
	r.StartTime = &startTime
	return true, nil
}

func (m *memStore) MarkCompleted(ctx context.Context, rideID string, endTime int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusInProgress {
		return false, nil
	}
	r.Status = models.StatusCompleted
	r.EndTime = &endTime
	return true, nil
}

func (m *memStore) MarkCancelled(ctx context.Context, rideID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status == models.StatusCompleted || r.Status == models.StatusCancelled {
		return false, nil
	}
	r.Status = models.StatusCancelled
	return true, nil
}

func (m *memStore) SetRiderRating(ctx context.Context, rideID string, rating int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusCompleted || r.RiderRating != nil {
		return false, nil
	}
	r.RiderRating = &rating
	return true, nil
}

func (m *memStore) SetPassengerRating(ctx context.Context, rideID string, rating int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != models.StatusCompleted || r.PassengerRating != nil {
		return false, nil
	}
	r.PassengerRating = &rating
	return true, nil
}

func (m *memStore) AverageRiderRating(ctx context.Context, riderID string) (float64, error) {
	return 0, nil
}

func (m *memStore) AveragePassengerRating(ctx context.Context, passengerID string) (float64, error) {
	return 0, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) IncrementTotalRides(ctx context.Context, userIDs ...string) error { return nil }

func (m *memStore) SetUserRating(ctx context.Context, userID string, rating float64) error {
	return nil
}

func newTestRouter(store *memStore) chi.Router {
	svc := &services.RideService{
		Rides: store,
		Users: store,
		NewID: func() string { store.nextID++; return fmt.Sprintf("ride-%d", store.nextID) },
		Now:   func() int64 { return 1700000000 },
	}
	r := chi.NewRouter()
	r.Route("/api/rides", func(r chi.Router) {
		r.Post("/", CreateRide(svc))
		r.Get("/", ListRides(svc))
		r.Get("/{id}", GetRide(svc))
		r.Put("/{id}/accept", AcceptRide(svc))
		r.Put("/{id}/start", StartRide(svc))
		r.Put("/{id}/complete", CompleteRide(svc))
		r.Put("/{id}/cancel", CancelRide(svc))
		r.Put("/{id}/rate", RateRide(svc))
	})
	return r
}

func asUser(req *http.Request, id, userType string) *http.Request {
	claims := middleware.UserClaims{UserID: id, Name: "Test User", UserType: userType}
	return req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, claims))
}

func doJSON(t *testing.T, router chi.Router, method, path, body string, userID, userType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req = asUser(req, userID, userType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"pickupLocation": {"address": "Phagwara Junction", "coordinates": [75.77, 31.22]},
	"destinationLocation": {"address": "LPU", "coordinates": [75.70, 31.25]},
	"distance": 5, "duration": 15, "fare": 150, "vehicleType": "car"
}`

func decodeRide(t *testing.T, rec *httptest.ResponseRecorder) models.RideResponse {
	t.Helper()
	var ride models.RideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ride); err != nil {
		t.Fatalf("decode ride: %v (%s)", err, rec.Body.String())
	}
	return ride
}

func errMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body["message"]
}

func TestCreateRideEndpoint(t *testing.T) {
	store := newMemStore()
	store.users["p1"] = &models.User{ID: "p1", Name: "Pia", UserType: models.RolePassenger}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/rides", createBody, "p1", "passenger")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	ride := decodeRide(t, rec)
	if ride.Status != models.StatusRequested {
		t.Fatalf("expected requested, got %s", ride.Status)
	}
	if ride.PickupLocation.Address != "Phagwara Junction" {
		t.Fatalf("pickup lost: %+v", ride.PickupLocation)
	}
	if len(ride.PickupLocation.Coordinates) != 2 || ride.PickupLocation.Coordinates[0] != 75.77 {
		t.Fatalf("coordinates lost: %v", ride.PickupLocation.Coordinates)
	}
}

func TestCreateRideValidationError(t *testing.T) {
	router := newTestRouter(newMemStore())
	rec := doJSON(t, router, http.MethodPost, "/api/rides",
		`{"pickupLocation": {"address": ""}}`, "p1", "passenger")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errMessage(t, rec); msg != "please provide all required fields" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRidesRequireIdentity(t *testing.T) {
	router := newTestRouter(newMemStore())
	rec := doJSON(t, router, http.MethodPost, "/api/rides", createBody, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}
}

func TestRideStatusCodes(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/rides", createBody, "p1", "passenger")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	rideID := decodeRide(t, rec).ID

	// Unknown ride.
	if rec := doJSON(t, router, http.MethodGet, "/api/rides/missing", "", "p1", "passenger"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing ride: expected 404, got %d", rec.Code)
	}
	// A stranger cannot view it.
	if rec := doJSON(t, router, http.MethodGet, "/api/rides/"+rideID, "", "p2", "passenger"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stranger view: expected 401, got %d", rec.Code)
	}
	// Passengers cannot accept.
	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/accept", "", "p1", "passenger"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("passenger accept: expected 401, got %d", rec.Code)
	}
	// Rider accepts.
	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/accept", "", "r1", "rider"); rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// Second accept conflicts.
	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/accept", "", "r2", "rider"); rec.Code != http.StatusBadRequest {
		t.Fatalf("double accept: expected 400, got %d", rec.Code)
	}

	// Wrong OTP.
	stored, _ := store.GetRideByID(context.Background(), rideID)
	wrong := "0000"
	if stored.OTP == wrong {
		wrong = "1111"
	}
	rec = doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/start",
		`{"otp": "`+wrong+`"}`, "r1", "rider")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong otp: expected 400, got %d", rec.Code)
	}
	if msg := errMessage(t, rec); msg != "invalid OTP" {
		t.Fatalf("unexpected message %q", msg)
	}

	// Right OTP starts the ride.
	rec = doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/start",
		`{"otp": "`+stored.OTP+`"}`, "r1", "rider")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeRide(t, rec).Status; got != models.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", got)
	}

	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/complete", "", "r1", "rider"); rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", rec.Code)
	}
	// Completed rides cannot be cancelled.
	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/cancel", "", "p1", "passenger"); rec.Code != http.StatusBadRequest {
		t.Fatalf("cancel completed: expected 400, got %d", rec.Code)
	}
	// Rate once, then conflict.
	if rec := doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/rate", `{"rating": 5}`, "p1", "passenger"); rec.Code != http.StatusOK {
		t.Fatalf("rate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPut, "/api/rides/"+rideID+"/rate", `{"rating": 3}`, "p1", "passenger")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate rate: expected 400, got %d", rec.Code)
	}
	if msg := errMessage(t, rec); msg != "you have already rated this ride" {
		t.Fatalf("unexpected message %q", msg)
	}
}
