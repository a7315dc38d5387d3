package websocket

import "encoding/json"

// Envelope is the wire frame for every relay event, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client -> server event names.
const (
	EventPing                  = "ping"
	EventRideRequest           = "rideRequest"
	EventAcceptRide            = "acceptRide"
	EventUpdateLocation        = "updateLocation"
	EventValidateOTP           = "validateOTP"
	EventOTPValidationResponse = "otpValidationResponse"
)

// Server -> client event names.
const (
	EventPong                 = "pong"
	EventNewRideRequest       = "newRideRequest"
	EventRideRequestAck       = "rideRequestAck"
	EventRideAccepted         = "rideAccepted"
	EventLocationUpdated      = "locationUpdated"
	EventOTPValidationRequest = "otpValidationRequest"
	EventOTPValidationResult  = "otpValidationResult"
)

// LocationPoint is a plain coordinate pair used inside relay payloads.
type LocationPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RideSummary is the slice of a ride that travels over the relay. The
// authoritative record stays in the lifecycle service; this is display
// data for the counterpart's client.
type RideSummary struct {
	ID                  string       `json:"id"`
	PickupLocation      AddressPoint `json:"pickupLocation"`
	DestinationLocation AddressPoint `json:"destinationLocation"`
	Distance            float64      `json:"distance"`
	Duration            float64      `json:"duration"`
	Fare                float64      `json:"fare"`
	VehicleType         string       `json:"vehicleType"`
	OTP                 string       `json:"otp,omitempty"`
}

type AddressPoint struct {
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

// RideRequestPayload is sent by a passenger client to fan a new ride
// out to every connected rider.
type RideRequestPayload struct {
	Ride          RideSummary `json:"ride"`
	PassengerID   string      `json:"passengerId"`
	PassengerName string      `json:"passengerName"`
}

// RideRequestBroadcast is what riders receive.
type RideRequestBroadcast struct {
	RideRequestPayload
	RequesterID       string         `json:"requesterId"`
	RequesterType     string         `json:"requesterType"`
	PickupCoordinates *LocationPoint `json:"pickupCoordinates,omitempty"`
	Timestamp         int64          `json:"timestamp"`
}

// RideRequestAck confirms broadcast back to the requesting passenger.
type RideRequestAck struct {
	Received    bool  `json:"received"`
	RidersCount int   `json:"ridersCount"`
	Timestamp   int64 `json:"timestamp"`
}

// AcceptRidePayload is sent by the rider who took the ride; the relay
// forwards it to the passenger's identity channel as rideAccepted.
type AcceptRidePayload struct {
	Ride          RideSummary    `json:"ride"`
	PassengerID   string         `json:"passengerId"`
	RiderName     string         `json:"riderName"`
	RiderLocation *LocationPoint `json:"riderLocation,omitempty"`
}

type RideAcceptedNotice struct {
	AcceptRidePayload
	RiderID   string `json:"riderId"`
	Timestamp int64  `json:"timestamp"`
}

// LocationUpdatePayload is relayed point-to-point between the matched
// passenger/rider pair.
type LocationUpdatePayload struct {
	RideID      string        `json:"rideId"`
	RecipientID string        `json:"recipientId"`
	UserID      string        `json:"userId"`
	UserType    string        `json:"userType"`
	Location    LocationPoint `json:"location"`
}

// OTPChallengePayload is the rider's relayed verification request.
type OTPChallengePayload struct {
	RideID      string `json:"rideId"`
	OTP         string `json:"otp"`
	PassengerID string `json:"passengerId"`
	RiderID     string `json:"riderId"`
}

// OTPValidationRequest is what the passenger's client receives.
type OTPValidationRequest struct {
	RideID     string `json:"rideId"`
	RiderID    string `json:"riderId"`
	EnteredOTP string `json:"enteredOTP"`
}

// OTPResponsePayload carries the passenger's verdict back toward the
// rider. The verdict is advisory; only the start-ride API commits the
// transition.
type OTPResponsePayload struct {
	RideID  string `json:"rideId"`
	RiderID string `json:"riderId"`
	IsValid bool   `json:"isValid"`
}

type OTPValidationResult struct {
	RideID  string `json:"rideId"`
	IsValid bool   `json:"isValid"`
}

func marshalEnvelope(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
