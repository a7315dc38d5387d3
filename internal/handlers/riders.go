package handlers

import (
	"net/http"
	"time"

	"rideon-backend/internal/database"
	"rideon-backend/internal/middleware"
	"rideon-backend/internal/models"
	"rideon-backend/pkg/utils"
)

type earningsRide struct {
	ID                 string  `json:"id"`
	PickupAddress      string  `json:"pickupAddress"`
	DestinationAddress string  `json:"destinationAddress"`
	Fare               float64 `json:"fare"`
	CompletedAt        int64   `json:"completedAt"`
}

type earningsResponse struct {
	Today       float64        `json:"today"`
	ThisWeek    float64        `json:"thisWeek"`
	ThisMonth   float64        `json:"thisMonth"`
	Total       float64        `json:"total"`
	RecentRides []earningsRide `json:"recentRides"`
}

// Earnings handles GET /api/riders/earnings: fare totals over the
// rider's completed rides, bucketed by completion time.
func Earnings(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if claims.UserType != models.RoleRider {
			utils.RespondError(w, http.StatusUnauthorized, "only riders have earnings")
			return
		}

		rides, err := store.CompletedRidesByRider(r.Context(), claims.UserID, 0)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to load earnings")
			return
		}

		now := time.Now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
		weekStart := now.AddDate(0, 0, -7).Unix()
		monthStart := now.AddDate(0, -1, 0).Unix()

		resp := earningsResponse{RecentRides: []earningsRide{}}
		for _, ride := range rides {
			resp.Total += ride.Fare
			if ride.EndTime == nil {
				continue
			}
			end := *ride.EndTime
			if end >= dayStart {
				resp.Today += ride.Fare
			}
			if end >= weekStart {
				resp.ThisWeek += ride.Fare
			}
			if end >= monthStart {
				resp.ThisMonth += ride.Fare
			}
			if len(resp.RecentRides) < 10 {
				resp.RecentRides = append(resp.RecentRides, earningsRide{
					ID:                 ride.ID,
					PickupAddress:      ride.PickupAddress,
					DestinationAddress: ride.DestAddress,
					Fare:               ride.Fare,
					CompletedAt:        end,
				})
			}
		}
		utils.RespondJSON(w, http.StatusOK, resp)
	}
}
