package models

const (
	RolePassenger = "passenger"
	RoleRider     = "rider"
)

// Vehicle is required for riders, absent for passengers.
type Vehicle struct {
	Type               string `json:"type" db:"vehicle_type"` // "car", "bike" or "auto"
	Model              string `json:"model" db:"vehicle_model"`
	RegistrationNumber string `json:"registrationNumber" db:"vehicle_registration"`
}

type User struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	Email       string   `json:"email" db:"email"`
	Password    string   `json:"-" db:"password"` // Never return password in JSON
	UserType    string   `json:"userType" db:"user_type"`
	Vehicle     *Vehicle `json:"vehicle,omitempty"`
	Longitude   float64  `json:"-" db:"longitude"`
	Latitude    float64  `json:"-" db:"latitude"`
	IsAvailable bool     `json:"isAvailable" db:"is_available"`
	Rating      float64  `json:"rating" db:"rating"`
	TotalRides  int      `json:"totalRides" db:"total_rides"`
	CreatedAt   int64    `json:"createdAt" db:"created_at"`
	UpdatedAt   int64    `json:"updatedAt" db:"updated_at"`
}

type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

// Location renders the stored point as GeoJSON.
func (u *User) Location() GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{u.Longitude, u.Latitude}}
}

type UserResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	UserType    string   `json:"userType"`
	Vehicle     *Vehicle `json:"vehicle,omitempty"`
	Location    GeoPoint `json:"location"`
	IsAvailable bool     `json:"isAvailable"`
	Rating      float64  `json:"rating"`
	TotalRides  int      `json:"totalRides"`
	MemberSince int64    `json:"memberSince"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		UserType:    u.UserType,
		Vehicle:     u.Vehicle,
		Location:    u.Location(),
		IsAvailable: u.IsAvailable,
		Rating:      u.Rating,
		TotalRides:  u.TotalRides,
		MemberSince: u.CreatedAt,
	}
}

// UserSummary is the counterpart view embedded in ride responses.
type UserSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Rating  float64  `json:"rating"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

func (u *User) ToSummary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Rating: u.Rating, Vehicle: u.Vehicle}
}
