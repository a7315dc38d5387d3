package database

import (
	"context"
	"database/sql"
	"errors"

	"rideon-backend/internal/models"
)

func (s *Store) InsertRide(ctx context.Context, r *models.Ride) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rides (id, passenger_id, pickup_address, pickup_lon, pickup_lat,
			dest_address, dest_lon, dest_lat, distance, duration, fare, vehicle_type,
			status, otp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.PassengerID, r.PickupAddress, r.PickupLon, r.PickupLat,
		r.DestAddress, r.DestLon, r.DestLat, r.Distance, r.Duration, r.Fare, r.VehicleType,
		r.Status, r.OTP, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) GetRideByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	err := s.db.GetContext(ctx, &ride, `SELECT * FROM rides WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func (s *Store) ListRidesByPassenger(ctx context.Context, passengerID string) ([]models.Ride, error) {
	var rides []models.Ride
	err := s.db.SelectContext(ctx, &rides, `
		SELECT * FROM rides WHERE passenger_id = $1 ORDER BY created_at DESC`, passengerID)
	return rides, err
}

func (s *Store) ListRidesByRider(ctx context.Context, riderID string) ([]models.Ride, error) {
	var rides []models.Ride
	err := s.db.SelectContext(ctx, &rides, `
		SELECT * FROM rides WHERE rider_id = $1 ORDER BY created_at DESC`, riderID)
	return rides, err
}

// AssignRider commits requested -> accepted. The status predicate in the
// WHERE clause is the compare-and-set that makes two racing accepts
// resolve to exactly one winner.
func (s *Store) AssignRider(ctx context.Context, rideID, riderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET rider_id = $2, status = 'accepted',
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status = 'requested' AND rider_id IS NULL`, rideID, riderID)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// MarkStarted commits accepted -> in-progress.
func (s *Store) MarkStarted(ctx context.Context, rideID string, startTime int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET status = 'in-progress', start_time = $2,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status = 'accepted'`, rideID, startTime)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// MarkCompleted commits in-progress -> completed.
func (s *Store) MarkCompleted(ctx context.Context, rideID string, endTime int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET status = 'completed', end_time = $2,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status = 'in-progress'`, rideID, endTime)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// MarkCancelled moves any pre-completion ride into cancelled.
func (s *Store) MarkCancelled(ctx context.Context, rideID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET status = 'cancelled',
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`, rideID)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// SetRiderRating writes the rating the passenger gives the rider. The
// NULL predicate makes the write first-wins: a duplicate rating never
// overwrites the stored value.
func (s *Store) SetRiderRating(ctx context.Context, rideID string, rating int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET rider_rating = $2,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status = 'completed' AND rider_rating IS NULL`, rideID, rating)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// SetPassengerRating writes the rating the rider gives the passenger.
func (s *Store) SetPassengerRating(ctx context.Context, rideID string, rating int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides SET passenger_rating = $2,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1 AND status = 'completed' AND passenger_rating IS NULL`, rideID, rating)
	if err != nil {
		return false, err
	}
	return oneRowChanged(res)
}

// AverageRiderRating recomputes the mean of every rating the rider has
// ever received, from scratch.
func (s *Store) AverageRiderRating(ctx context.Context, riderID string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.GetContext(ctx, &avg, `
		SELECT AVG(rider_rating) FROM rides
		WHERE rider_id = $1 AND rider_rating IS NOT NULL`, riderID)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

func (s *Store) AveragePassengerRating(ctx context.Context, passengerID string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.GetContext(ctx, &avg, `
		SELECT AVG(passenger_rating) FROM rides
		WHERE passenger_id = $1 AND passenger_rating IS NOT NULL`, passengerID)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// CompletedRidesByRider feeds the rider earnings summary.
func (s *Store) CompletedRidesByRider(ctx context.Context, riderID string, since int64) ([]models.Ride, error) {
	var rides []models.Ride
	err := s.db.SelectContext(ctx, &rides, `
		SELECT * FROM rides
		WHERE rider_id = $1 AND status = 'completed' AND end_time >= $2
		ORDER BY end_time DESC`, riderID, since)
	return rides, err
}

func oneRowChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
