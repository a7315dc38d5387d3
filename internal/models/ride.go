package models

// Ride statuses. A ride only moves forward through
// requested -> accepted -> in-progress -> completed, or sideways into
// cancelled from any pre-completion state.
const (
	StatusRequested  = "requested"
	StatusAccepted   = "accepted"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	VehicleCar  = "car"
	VehicleBike = "bike"
	VehicleAuto = "auto"
)

func ValidVehicleType(t string) bool {
	return t == VehicleCar || t == VehicleBike || t == VehicleAuto
}

// TripLocation is a pickup or destination point.
type TripLocation struct {
	Address   string  `json:"address"`
	Longitude float64 `json:"-"`
	Latitude  float64 `json:"-"`
}

// MarshalJSON-compatible wire form: {address, coordinates:[lon,lat]}.
type tripLocationJSON struct {
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates"`
}

func (l TripLocation) wire() tripLocationJSON {
	return tripLocationJSON{Address: l.Address, Coordinates: []float64{l.Longitude, l.Latitude}}
}

type Ride struct {
	ID          string  `db:"id"`
	PassengerID string  `db:"passenger_id"`
	RiderID     *string `db:"rider_id"`

	PickupAddress string  `db:"pickup_address"`
	PickupLon     float64 `db:"pickup_lon"`
	PickupLat     float64 `db:"pickup_lat"`
	DestAddress   string  `db:"dest_address"`
	DestLon       float64 `db:"dest_lon"`
	DestLat       float64 `db:"dest_lat"`

	Distance    float64 `db:"distance"` // km
	Duration    float64 `db:"duration"` // minutes
	Fare        float64 `db:"fare"`
	VehicleType string  `db:"vehicle_type"`

	Status    string  `db:"status"`
	OTP       string  `db:"otp"`
	StartTime *int64  `db:"start_time"`
	EndTime   *int64  `db:"end_time"`

	PassengerRating *int `db:"passenger_rating"`
	RiderRating     *int `db:"rider_rating"`

	CreatedAt int64 `db:"created_at"`
	UpdatedAt int64 `db:"updated_at"`
}

func (r *Ride) Pickup() TripLocation {
	return TripLocation{Address: r.PickupAddress, Longitude: r.PickupLon, Latitude: r.PickupLat}
}

func (r *Ride) Destination() TripLocation {
	return TripLocation{Address: r.DestAddress, Longitude: r.DestLon, Latitude: r.DestLat}
}

// IsParty reports whether userID is the passenger or the assigned rider.
func (r *Ride) IsParty(userID string) bool {
	if r.PassengerID == userID {
		return true
	}
	return r.RiderID != nil && *r.RiderID == userID
}

// RideResponse is the wire form of a ride, with counterpart summaries
// populated when known.
type RideResponse struct {
	ID                  string           `json:"id"`
	Passenger           *UserSummary     `json:"passenger,omitempty"`
	Rider               *UserSummary     `json:"rider,omitempty"`
	PickupLocation      tripLocationJSON `json:"pickupLocation"`
	DestinationLocation tripLocationJSON `json:"destinationLocation"`
	Distance            float64          `json:"distance"`
	Duration            float64          `json:"duration"`
	Fare                float64          `json:"fare"`
	VehicleType         string           `json:"vehicleType"`
	Status              string           `json:"status"`
	OTP                 string           `json:"otp"`
	StartTime           *int64           `json:"startTime,omitempty"`
	EndTime             *int64           `json:"endTime,omitempty"`
	PassengerRating     *int             `json:"passengerRating,omitempty"`
	RiderRating         *int             `json:"riderRating,omitempty"`
	CreatedAt           int64            `json:"createdAt"`
	UpdatedAt           int64            `json:"updatedAt"`
}

func (r *Ride) ToRideResponse(passenger, rider *UserSummary) RideResponse {
	return RideResponse{
		ID:                  r.ID,
		Passenger:           passenger,
		Rider:               rider,
		PickupLocation:      r.Pickup().wire(),
		DestinationLocation: r.Destination().wire(),
		Distance:            r.Distance,
		Duration:            r.Duration,
		Fare:                r.Fare,
		VehicleType:         r.VehicleType,
		Status:              r.Status,
		OTP:                 r.OTP,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		PassengerRating:     r.PassengerRating,
		RiderRating:         r.RiderRating,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}
