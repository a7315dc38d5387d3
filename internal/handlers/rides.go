package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rideon-backend/internal/middleware"
	"rideon-backend/internal/models"
	"rideon-backend/internal/observability"
	"rideon-backend/internal/services"
	"rideon-backend/pkg/utils"
)

type locationBody struct {
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

func (l locationBody) toTripLocation() models.TripLocation {
	loc := models.TripLocation{Address: l.Address}
	if len(l.Coordinates) == 2 {
		loc.Longitude = l.Coordinates[0]
		loc.Latitude = l.Coordinates[1]
	}
	return loc
}

type createRideRequest struct {
	PickupLocation      locationBody `json:"pickupLocation"`
	DestinationLocation locationBody `json:"destinationLocation"`
	Distance            float64      `json:"distance"`
	Duration            float64      `json:"duration"`
	Fare                float64      `json:"fare"`
	VehicleType         string       `json:"vehicleType"`
}

func actor(r *http.Request) (services.Actor, bool) {
	claims, ok := middleware.GetUserFromContext(r)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{ID: claims.UserID, Role: claims.UserType}, true
}

func respondRide(w http.ResponseWriter, ride models.RideResponse, err error, status int, transition string) {
	if err != nil {
		utils.RespondError(w, services.HTTPStatus(err), err.Error())
		return
	}
	if transition != "" {
		observability.RideTransitions.WithLabelValues(transition).Inc()
	}
	utils.RespondJSON(w, status, ride)
}

// CreateRide handles POST /api/rides.
func CreateRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var req createRideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ride, err := svc.CreateRide(r.Context(), caller.ID, services.TripFacts{
			Pickup:      req.PickupLocation.toTripLocation(),
			Destination: req.DestinationLocation.toTripLocation(),
			Distance:    req.Distance,
			Duration:    req.Duration,
			Fare:        req.Fare,
			VehicleType: req.VehicleType,
		})
		if err == nil {
			observability.RidesCreated.Inc()
		}
		respondRide(w, ride, err, http.StatusCreated, "")
	}
}

// ListRides handles GET /api/rides: the caller's rides, newest first.
func ListRides(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		rides, err := svc.ListRides(r.Context(), caller)
		if err != nil {
			utils.RespondError(w, services.HTTPStatus(err), err.Error())
			return
		}
		utils.RespondJSON(w, http.StatusOK, rides)
	}
}

// GetRide handles GET /api/rides/{id}.
func GetRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ride, err := svc.GetRide(r.Context(), chi.URLParam(r, "id"), caller)
		respondRide(w, ride, err, http.StatusOK, "")
	}
}

// AcceptRide handles PUT /api/rides/{id}/accept.
func AcceptRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ride, err := svc.AcceptRide(r.Context(), chi.URLParam(r, "id"), caller)
		respondRide(w, ride, err, http.StatusOK, models.StatusAccepted)
	}
}

// StartRide handles PUT /api/rides/{id}/start. The OTP comparison in
// the service is the authoritative check.
func StartRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var body struct {
			OTP string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ride, err := svc.StartRide(r.Context(), chi.URLParam(r, "id"), caller, body.OTP)
		respondRide(w, ride, err, http.StatusOK, models.StatusInProgress)
	}
}

// CompleteRide handles PUT /api/rides/{id}/complete.
func CompleteRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ride, err := svc.CompleteRide(r.Context(), chi.URLParam(r, "id"), caller)
		respondRide(w, ride, err, http.StatusOK, models.StatusCompleted)
	}
}

// CancelRide handles PUT /api/rides/{id}/cancel.
func CancelRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ride, err := svc.CancelRide(r.Context(), chi.URLParam(r, "id"), caller)
		respondRide(w, ride, err, http.StatusOK, models.StatusCancelled)
	}
}

// RateRide handles PUT /api/rides/{id}/rate.
func RateRide(svc *services.RideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := actor(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var body struct {
			Rating int `json:"rating"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ride, err := svc.RateRide(r.Context(), chi.URLParam(r, "id"), caller, body.Rating)
		respondRide(w, ride, err, http.StatusOK, "")
	}
}
