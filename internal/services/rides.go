package services

import (
	"context"
	"log/slog"
	"time"

	"rideon-backend/internal/models"
)

// RideStore is the persistence surface the lifecycle service needs.
// Every Mark*/Assign* call is an atomic conditional update: it succeeds
// only when the stored status still matches the expected source state,
// and reports false when another caller won the race.
type RideStore interface {
	InsertRide(ctx context.Context, ride *models.Ride) error
	GetRideByID(ctx context.Context, id string) (*models.Ride, error)
	ListRidesByPassenger(ctx context.Context, passengerID string) ([]models.Ride, error)
	ListRidesByRider(ctx context.Context, riderID string) ([]models.Ride, error)

	AssignRider(ctx context.Context, rideID, riderID string) (bool, error)
	MarkStarted(ctx context.Context, rideID string, startTime int64) (bool, error)
	MarkCompleted(ctx context.Context, rideID string, endTime int64) (bool, error)
	MarkCancelled(ctx context.Context, rideID string) (bool, error)

	SetRiderRating(ctx context.Context, rideID string, rating int) (bool, error)
	SetPassengerRating(ctx context.Context, rideID string, rating int) (bool, error)
	AverageRiderRating(ctx context.Context, riderID string) (float64, error)
	AveragePassengerRating(ctx context.Context, passengerID string) (float64, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	IncrementTotalRides(ctx context.Context, userIDs ...string) error
	SetUserRating(ctx context.Context, userID string, rating float64) error
}

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   string
	Role string // "passenger" or "rider"
}

// TripFacts are the immutable facts captured at ride creation.
type TripFacts struct {
	Pickup      models.TripLocation
	Destination models.TripLocation
	Distance    float64
	Duration    float64
	Fare        float64
	VehicleType string
}

// RideService owns the ride state machine. All transitions go through
// here; handlers and the websocket layer never mutate ride status
// themselves.
type RideService struct {
	Rides  RideStore
	Users  UserStore
	Events RideEventPublisher
	Logger *slog.Logger

	NewID func() string
	Now   func() int64 // unix seconds, overridable in tests
}

func (s *RideService) now() int64 {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().Unix()
}

// CreateRide validates the trip facts, generates the OTP and persists a
// new ride in the requested state.
func (s *RideService) CreateRide(ctx context.Context, passengerID string, facts TripFacts) (models.RideResponse, error) {
	if facts.Pickup.Address == "" || facts.Destination.Address == "" {
		return models.RideResponse{}, NewValidationError("please provide all required fields")
	}
	if facts.Distance <= 0 || facts.Duration <= 0 || facts.Fare <= 0 {
		return models.RideResponse{}, NewValidationError("please provide all required fields")
	}
	if !models.ValidVehicleType(facts.VehicleType) {
		return models.RideResponse{}, NewValidationError("vehicle type must be car, bike or auto")
	}

	now := s.now()
	ride := &models.Ride{
		ID:            s.NewID(),
		PassengerID:   passengerID,
		PickupAddress: facts.Pickup.Address,
		PickupLon:     facts.Pickup.Longitude,
		PickupLat:     facts.Pickup.Latitude,
		DestAddress:   facts.Destination.Address,
		DestLon:       facts.Destination.Longitude,
		DestLat:       facts.Destination.Latitude,
		Distance:      facts.Distance,
		Duration:      facts.Duration,
		Fare:          facts.Fare,
		VehicleType:   facts.VehicleType,
		Status:        models.StatusRequested,
		OTP:           GenerateOTP(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Rides.InsertRide(ctx, ride); err != nil {
		return models.RideResponse{}, err
	}
	s.publish(ctx, ride, "requested", passengerID)
	return s.populate(ctx, ride), nil
}

// ListRides returns the caller's rides, newest first, with the
// counterpart summary attached.
func (s *RideService) ListRides(ctx context.Context, caller Actor) ([]models.RideResponse, error) {
	var (
		rides []models.Ride
		err   error
	)
	if caller.Role == models.RoleRider {
		rides, err = s.Rides.ListRidesByRider(ctx, caller.ID)
	} else {
		rides, err = s.Rides.ListRidesByPassenger(ctx, caller.ID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.RideResponse, 0, len(rides))
	for i := range rides {
		out = append(out, s.populate(ctx, &rides[i]))
	}
	return out, nil
}

func (s *RideService) GetRide(ctx context.Context, rideID string, caller Actor) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ride.IsParty(caller.ID) {
		return models.RideResponse{}, NewForbiddenError("not authorized to view this ride")
	}
	return s.populate(ctx, ride), nil
}

// AcceptRide assigns the calling rider to a requested ride. Two riders
// racing on the same ride resolve through the conditional update: one
// wins, the other gets a conflict.
func (s *RideService) AcceptRide(ctx context.Context, rideID string, caller Actor) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if caller.Role != models.RoleRider {
		return models.RideResponse{}, NewForbiddenError("only riders can accept rides")
	}
	if ride.Status != models.StatusRequested {
		return models.RideResponse{}, NewConflictError("this ride has already been accepted or is no longer available")
	}
	ok, err := s.Rides.AssignRider(ctx, rideID, caller.ID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ok {
		return models.RideResponse{}, NewConflictError("this ride has already been accepted or is no longer available")
	}
	return s.reload(ctx, rideID, "accepted", caller.ID)
}

// StartRide commits the accepted -> in-progress transition after
// checking the supplied code against the stored OTP. This comparison is
// the only authoritative OTP check; the relayed websocket handshake is
// advisory UX and never commits state.
func (s *RideService) StartRide(ctx context.Context, rideID string, caller Actor, code string) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if ride.RiderID == nil || *ride.RiderID != caller.ID {
		return models.RideResponse{}, NewForbiddenError("not authorized to start this ride")
	}
	if ride.Status != models.StatusAccepted {
		return models.RideResponse{}, NewConflictError("this ride cannot be started")
	}
	if code == "" {
		return models.RideResponse{}, NewValidationError("please provide OTP")
	}
	if code != ride.OTP {
		return models.RideResponse{}, NewValidationError("invalid OTP")
	}
	ok, err := s.Rides.MarkStarted(ctx, rideID, s.now())
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ok {
		return models.RideResponse{}, NewConflictError("this ride cannot be started")
	}
	return s.reload(ctx, rideID, "started", caller.ID)
}

// CompleteRide ends an in-progress ride and bumps both parties' ride
// counters.
func (s *RideService) CompleteRide(ctx context.Context, rideID string, caller Actor) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if ride.RiderID == nil || *ride.RiderID != caller.ID {
		return models.RideResponse{}, NewForbiddenError("not authorized to complete this ride")
	}
	if ride.Status != models.StatusInProgress {
		return models.RideResponse{}, NewConflictError("this ride cannot be completed")
	}
	ok, err := s.Rides.MarkCompleted(ctx, rideID, s.now())
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ok {
		return models.RideResponse{}, NewConflictError("this ride cannot be completed")
	}
	if err := s.Users.IncrementTotalRides(ctx, ride.PassengerID, *ride.RiderID); err != nil {
		s.logWarn("increment total rides failed", "ride_id", rideID, "error", err)
	}
	return s.reload(ctx, rideID, "completed", caller.ID)
}

// CancelRide moves any pre-completion ride into cancelled. Either party
// may cancel; there are no counter changes.
func (s *RideService) CancelRide(ctx context.Context, rideID string, caller Actor) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ride.IsParty(caller.ID) {
		return models.RideResponse{}, NewForbiddenError("not authorized to cancel this ride")
	}
	if ride.Status == models.StatusCompleted || ride.Status == models.StatusCancelled {
		return models.RideResponse{}, NewConflictError("this ride cannot be cancelled")
	}
	ok, err := s.Rides.MarkCancelled(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if !ok {
		return models.RideResponse{}, NewConflictError("this ride cannot be cancelled")
	}
	return s.reload(ctx, rideID, "cancelled", caller.ID)
}

// RateRide records a 1-5 rating for the counterpart of a completed ride
// and recomputes that party's average over all their rated rides. Each
// side may rate once; the guard lives in the conditional update so a
// duplicate never overwrites the first value.
func (s *RideService) RateRide(ctx context.Context, rideID string, caller Actor, rating int) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	if rating < 1 || rating > 5 {
		return models.RideResponse{}, NewValidationError("please provide a valid rating between 1 and 5")
	}
	if !ride.IsParty(caller.ID) {
		return models.RideResponse{}, NewForbiddenError("not authorized to rate this ride")
	}
	if ride.Status != models.StatusCompleted {
		return models.RideResponse{}, NewConflictError("only completed rides can be rated")
	}

	if ride.PassengerID == caller.ID {
		// Passenger rates the rider.
		ok, err := s.Rides.SetRiderRating(ctx, rideID, rating)
		if err != nil {
			return models.RideResponse{}, err
		}
		if !ok {
			return models.RideResponse{}, NewConflictError("you have already rated this ride")
		}
		if err := s.recomputeRating(ctx, *ride.RiderID, true); err != nil {
			s.logWarn("rider rating recompute failed", "ride_id", rideID, "error", err)
		}
	} else {
		// Rider rates the passenger.
		ok, err := s.Rides.SetPassengerRating(ctx, rideID, rating)
		if err != nil {
			return models.RideResponse{}, err
		}
		if !ok {
			return models.RideResponse{}, NewConflictError("you have already rated this ride")
		}
		if err := s.recomputeRating(ctx, ride.PassengerID, false); err != nil {
			s.logWarn("passenger rating recompute failed", "ride_id", rideID, "error", err)
		}
	}
	return s.reload(ctx, rideID, "rated", caller.ID)
}

// recomputeRating refreshes a party's stored average from scratch over
// all their rated rides. A slightly stale snapshot under concurrent
// completions is acceptable; each individual write is atomic.
func (s *RideService) recomputeRating(ctx context.Context, userID string, asRider bool) error {
	var (
		avg float64
		err error
	)
	if asRider {
		avg, err = s.Rides.AverageRiderRating(ctx, userID)
	} else {
		avg, err = s.Rides.AveragePassengerRating(ctx, userID)
	}
	if err != nil {
		return err
	}
	return s.Users.SetUserRating(ctx, userID, avg)
}

func (s *RideService) load(ctx context.Context, rideID string) (*models.Ride, error) {
	ride, err := s.Rides.GetRideByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, NewNotFoundError("ride not found")
	}
	return ride, nil
}

func (s *RideService) reload(ctx context.Context, rideID, event, actorID string) (models.RideResponse, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return models.RideResponse{}, err
	}
	s.publish(ctx, ride, event, actorID)
	return s.populate(ctx, ride), nil
}

// populate attaches counterpart summaries. Lookups are best-effort; a
// missing user record leaves the summary empty rather than failing the
// whole response.
func (s *RideService) populate(ctx context.Context, ride *models.Ride) models.RideResponse {
	var passenger, rider *models.UserSummary
	if u, err := s.Users.GetUserByID(ctx, ride.PassengerID); err == nil && u != nil {
		sum := u.ToSummary()
		passenger = &sum
	}
	if ride.RiderID != nil {
		if u, err := s.Users.GetUserByID(ctx, *ride.RiderID); err == nil && u != nil {
			sum := u.ToSummary()
			rider = &sum
		}
	}
	return ride.ToRideResponse(passenger, rider)
}

func (s *RideService) publish(ctx context.Context, ride *models.Ride, event, actorID string) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishRideEvent(ctx, RideEvent{
		RideID:    ride.ID,
		Event:     event,
		Status:    ride.Status,
		ActorID:   actorID,
		Timestamp: s.now(),
	}); err != nil {
		s.logWarn("ride event publish failed", "ride_id", ride.ID, "event", event, "error", err)
	}
}

func (s *RideService) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
