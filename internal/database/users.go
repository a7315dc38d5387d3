package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"rideon-backend/internal/models"
)

// userRow mirrors the users table; vehicle columns are nullable because
// passengers carry no vehicle.
type userRow struct {
	ID                  string          `db:"id"`
	Name                string          `db:"name"`
	Email               string          `db:"email"`
	Password            string          `db:"password"`
	UserType            string          `db:"user_type"`
	VehicleType         sql.NullString  `db:"vehicle_type"`
	VehicleModel        sql.NullString  `db:"vehicle_model"`
	VehicleRegistration sql.NullString  `db:"vehicle_registration"`
	Longitude           float64         `db:"longitude"`
	Latitude            float64         `db:"latitude"`
	IsAvailable         bool            `db:"is_available"`
	Rating              float64         `db:"rating"`
	TotalRides          int             `db:"total_rides"`
	CreatedAt           int64           `db:"created_at"`
	UpdatedAt           int64           `db:"updated_at"`
}

func (r *userRow) toUser() *models.User {
	u := &models.User{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Password:    r.Password,
		UserType:    r.UserType,
		Longitude:   r.Longitude,
		Latitude:    r.Latitude,
		IsAvailable: r.IsAvailable,
		Rating:      r.Rating,
		TotalRides:  r.TotalRides,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.VehicleType.Valid {
		u.Vehicle = &models.Vehicle{
			Type:               r.VehicleType.String,
			Model:              r.VehicleModel.String,
			RegistrationNumber: r.VehicleRegistration.String,
		}
	}
	return u
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	var vType, vModel, vReg any
	if u.Vehicle != nil {
		vType, vModel, vReg = u.Vehicle.Type, u.Vehicle.Model, u.Vehicle.RegistrationNumber
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, user_type,
			vehicle_type, vehicle_model, vehicle_registration,
			longitude, latitude, is_available, rating, total_rides, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Name, u.Email, u.Password, u.UserType,
		vType, vModel, vReg,
		u.Longitude, u.Latitude, u.IsAvailable, u.Rating, u.TotalRides, u.CreatedAt, u.UpdatedAt)
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toUser(), nil
}

// UpdateUser persists profile mutations (name, password, vehicle,
// location, availability).
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	var vType, vModel, vReg any
	if u.Vehicle != nil {
		vType, vModel, vReg = u.Vehicle.Type, u.Vehicle.Model, u.Vehicle.RegistrationNumber
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = $2, password = $3,
			vehicle_type = $4, vehicle_model = $5, vehicle_registration = $6,
			longitude = $7, latitude = $8, is_available = $9,
			updated_at = $10
		WHERE id = $1`,
		u.ID, u.Name, u.Password,
		vType, vModel, vReg,
		u.Longitude, u.Latitude, u.IsAvailable,
		time.Now().Unix())
	return err
}

// ArchiveAndDeleteUser copies the account into deleted_users and removes
// the live record in one transaction.
func (s *Store) ArchiveAndDeleteUser(ctx context.Context, u *models.User) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var vType, vModel, vReg any
	if u.Vehicle != nil {
		vType, vModel, vReg = u.Vehicle.Type, u.Vehicle.Model, u.Vehicle.RegistrationNumber
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO deleted_users (original_id, name, email, user_type, member_since,
			vehicle_type, vehicle_model, vehicle_registration, total_rides, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.UserType, u.CreatedAt,
		vType, vModel, vReg, u.TotalRides, u.Rating); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, u.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) IncrementTotalRides(ctx context.Context, userIDs ...string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET total_rides = total_rides + 1,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = ANY($1)`, pq.Array(userIDs))
	return err
}

func (s *Store) SetUserRating(ctx context.Context, userID string, rating float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET rating = $2,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1`, userID, rating)
	return err
}

// AvailableRiders returns riders flagged available, for the nearby-rider
// query fallback and presence debugging.
func (s *Store) AvailableRiders(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM users
		WHERE user_type = 'rider' AND is_available = TRUE`)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toUser())
	}
	return out, nil
}
