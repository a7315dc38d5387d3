package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rideon-backend/internal/database"
	"rideon-backend/internal/models"
	"rideon-backend/pkg/utils"
)

type RegisterRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	UserType string          `json:"userType"`
	Vehicle  *models.Vehicle `json:"vehicle,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	UserType string          `json:"userType"`
	Vehicle  *models.Vehicle `json:"vehicle,omitempty"`
	Token    string          `json:"token"`
}

// Register creates a new passenger or rider account.
func Register(store *database.Store, jwtSecret string, tokenTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" || req.Email == "" || len(req.Password) < 6 {
			utils.RespondError(w, http.StatusBadRequest, "please provide name, email and a password of at least 6 characters")
			return
		}
		if req.UserType != models.RolePassenger && req.UserType != models.RoleRider {
			utils.RespondError(w, http.StatusBadRequest, "please specify user type")
			return
		}
		if req.UserType == models.RoleRider {
			if req.Vehicle == nil || req.Vehicle.Type == "" || req.Vehicle.Model == "" || req.Vehicle.RegistrationNumber == "" {
				utils.RespondError(w, http.StatusBadRequest, "please provide vehicle information for rider")
				return
			}
			if !models.ValidVehicleType(req.Vehicle.Type) {
				utils.RespondError(w, http.StatusBadRequest, "vehicle type must be car, bike or auto")
				return
			}
		}

		existing, err := store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to check existing user")
			return
		}
		if existing != nil {
			utils.RespondError(w, http.StatusBadRequest, "user already exists")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}

		now := time.Now().Unix()
		user := &models.User{
			ID:          uuid.New().String(),
			Name:        req.Name,
			Email:       req.Email,
			Password:    string(hash),
			UserType:    req.UserType,
			IsAvailable: req.UserType == models.RoleRider,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if req.UserType == models.RoleRider {
			user.Vehicle = req.Vehicle
		}
		if err := store.InsertUser(r.Context(), user); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to create user")
			return
		}

		token, err := generateToken(user, jwtSecret, tokenTTL)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to create token")
			return
		}
		utils.RespondJSON(w, http.StatusCreated, AuthResponse{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			UserType: user.UserType,
			Vehicle:  user.Vehicle,
			Token:    token,
		})
	}
}

// Login authenticates by email and password and issues a bearer token.
func Login(store *database.Store, jwtSecret string, tokenTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to look up user")
			return
		}
		if user == nil {
			utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		token, err := generateToken(user, jwtSecret, tokenTTL)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to create token")
			return
		}
		utils.RespondJSON(w, http.StatusOK, AuthResponse{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			UserType: user.UserType,
			Vehicle:  user.Vehicle,
			Token:    token,
		})
	}
}

func generateToken(u *models.User, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  u.ID,
		"name":     u.Name,
		"userType": u.UserType,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
