package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rideon-backend/internal/models"
)

// SeedUsers inserts demo accounts for local development. Existing
// emails are left untouched.
func SeedUsers(s *Store) error {
	ctx := context.Background()
	seeds := []struct {
		name     string
		email    string
		password string
		userType string
		vehicle  *models.Vehicle
	}{
		{"Demo Passenger", "passenger@example.com", "password123", models.RolePassenger, nil},
		{"Demo Rider", "rider@example.com", "password123", models.RoleRider, &models.Vehicle{
			Type: models.VehicleCar, Model: "Swift Dzire", RegistrationNumber: "PB10AB1234",
		}},
	}

	for _, seed := range seeds {
		existing, err := s.GetUserByEmail(ctx, seed.email)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		u := &models.User{
			ID:          uuid.New().String(),
			Name:        seed.name,
			Email:       seed.email,
			Password:    string(hash),
			UserType:    seed.userType,
			Vehicle:     seed.vehicle,
			IsAvailable: seed.userType == models.RoleRider,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.InsertUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
