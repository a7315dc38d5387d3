package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rideon-backend/internal/database"
	"rideon-backend/internal/middleware"
	"rideon-backend/internal/models"
	"rideon-backend/internal/services"
	"rideon-backend/pkg/utils"
)

// GetProfile handles GET /api/users/profile.
func GetProfile(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if user == nil {
			utils.RespondError(w, http.StatusNotFound, "user not found")
			return
		}
		utils.RespondJSON(w, http.StatusOK, user.ToUserResponse())
	}
}

type updateProfileRequest struct {
	Name            string           `json:"name"`
	CurrentPassword string           `json:"currentPassword"`
	NewPassword     string           `json:"newPassword"`
	Vehicle         *models.Vehicle  `json:"vehicle"`
	Location        *models.GeoPoint `json:"location"`
	IsAvailable     *bool            `json:"isAvailable"`
}

// UpdateProfile handles PUT /api/users/profile. Rider location updates
// also refresh the geo index that backs the nearby-riders query.
func UpdateProfile(store *database.Store, index services.RiderIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if user == nil {
			utils.RespondError(w, http.StatusNotFound, "user not found")
			return
		}

		var req updateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Name != "" {
			user.Name = req.Name
		}
		if req.CurrentPassword != "" && req.NewPassword != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
				utils.RespondError(w, http.StatusBadRequest, "current password is incorrect")
				return
			}
			if len(req.NewPassword) < 6 {
				utils.RespondError(w, http.StatusBadRequest, "password must be at least 6 characters")
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, "failed to hash password")
				return
			}
			user.Password = string(hash)
		}
		if user.UserType == models.RoleRider && req.Vehicle != nil {
			if req.Vehicle.Type != "" && !models.ValidVehicleType(req.Vehicle.Type) {
				utils.RespondError(w, http.StatusBadRequest, "vehicle type must be car, bike or auto")
				return
			}
			if user.Vehicle == nil {
				user.Vehicle = &models.Vehicle{}
			}
			if req.Vehicle.Type != "" {
				user.Vehicle.Type = req.Vehicle.Type
			}
			if req.Vehicle.Model != "" {
				user.Vehicle.Model = req.Vehicle.Model
			}
			if req.Vehicle.RegistrationNumber != "" {
				user.Vehicle.RegistrationNumber = req.Vehicle.RegistrationNumber
			}
		}
		if req.Location != nil && len(req.Location.Coordinates) == 2 {
			user.Longitude = req.Location.Coordinates[0]
			user.Latitude = req.Location.Coordinates[1]
		}
		if req.IsAvailable != nil && user.UserType == models.RoleRider {
			user.IsAvailable = *req.IsAvailable
		}

		if err := store.UpdateUser(r.Context(), user); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}

		if user.UserType == models.RoleRider && index != nil {
			if user.IsAvailable {
				_ = index.Upsert(r.Context(), user.ID, user.Longitude, user.Latitude)
			} else {
				_ = index.Remove(r.Context(), user.ID)
			}
		}
		utils.RespondJSON(w, http.StatusOK, user.ToUserResponse())
	}
}

// DeleteAccount handles DELETE /api/users/profile: the account is
// archived before removal.
func DeleteAccount(store *database.Store, index services.RiderIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if user == nil {
			utils.RespondError(w, http.StatusNotFound, "user not found")
			return
		}
		if err := store.ArchiveAndDeleteUser(r.Context(), user); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to delete account")
			return
		}
		if user.UserType == models.RoleRider && index != nil {
			_ = index.Remove(r.Context(), user.ID)
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "user account deleted successfully"})
	}
}

// NearbyRiders handles GET /api/users/riders: available riders near a
// point, closest first. This is a query aid only; ride-request
// broadcast is not filtered by it.
func NearbyRiders(store *database.Store, index services.RiderIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lonStr := r.URL.Query().Get("longitude")
		latStr := r.URL.Query().Get("latitude")
		if lonStr == "" || latStr == "" {
			utils.RespondError(w, http.StatusBadRequest, "please provide longitude and latitude")
			return
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid longitude")
			return
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid latitude")
			return
		}
		maxDistance := 10000.0 // meters
		if v := r.URL.Query().Get("maxDistance"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				maxDistance = f
			}
		}

		positions, err := index.Nearby(r.Context(), lon, lat, maxDistance, 50)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to query nearby riders")
			return
		}

		out := make([]models.UserResponse, 0, len(positions))
		for _, pos := range positions {
			user, err := store.GetUserByID(r.Context(), pos.RiderID)
			if err != nil || user == nil {
				continue
			}
			if user.UserType != models.RoleRider || !user.IsAvailable {
				continue
			}
			out = append(out, user.ToUserResponse())
		}
		utils.RespondJSON(w, http.StatusOK, out)
	}
}

// presenceResponse is a debug view of the presence registry.
type presenceResponse struct {
	RidersOnline int      `json:"ridersOnline"`
	RiderIDs     []string `json:"riderIds"`
	Clients      int      `json:"clients"`
	Timestamp    int64    `json:"timestamp"`
}

type presenceSource interface {
	ConnectedRiderIDs() []string
	RiderCount() int
	ClientCount() int
}

// Presence handles GET /api/presence, an observability aid listing the
// riders currently reachable over the relay.
func Presence(hub presenceSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, presenceResponse{
			RidersOnline: hub.RiderCount(),
			RiderIDs:     hub.ConnectedRiderIDs(),
			Clients:      hub.ClientCount(),
			Timestamp:    time.Now().Unix(),
		})
	}
}
