package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const testSecret = "relay-test-secret"

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	go hub.Run()
	srv := httptest.NewServer(Handler(hub, testSecret))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitUntil polls for an async hub condition; registration goes through
// the hub loop, so a fresh connection is not a member immediately.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode frame %q: %v", raw, err)
	}
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no delivery, got %s", raw)
	}
}

func TestPing(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "")

	sendEvent(t, conn, EventPing, map[string]string{})
	env := readEvent(t, conn)
	if env.Event != EventPong {
		t.Fatalf("expected pong, got %s", env.Event)
	}
}

func TestRideRequestBroadcast(t *testing.T) {
	hub, srv := startHub(t)
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	riderA := dial(t, srv, "userId=r1&userType=rider")
	riderB := dial(t, srv, "userId=r2&userType=rider")
	bystander := dial(t, srv, "userId=p2&userType=passenger")
	waitUntil(t, "all members registered", func() bool {
		return hub.RiderCount() == 2 && hub.IsConnected("p1") && hub.IsConnected("p2")
	})

	sendEvent(t, passenger, EventRideRequest, RideRequestPayload{
		Ride: RideSummary{
			ID:             "ride-1",
			PickupLocation: AddressPoint{Address: "Phagwara", Coordinates: []float64{75.77, 31.22}},
			Fare:           150,
			VehicleType:    "car",
		},
		PassengerID:   "p1",
		PassengerName: "Pia",
	})

	for _, rider := range []*websocket.Conn{riderA, riderB} {
		env := readEvent(t, rider)
		if env.Event != EventNewRideRequest {
			t.Fatalf("rider expected newRideRequest, got %s", env.Event)
		}
		var b RideRequestBroadcast
		if err := json.Unmarshal(env.Data, &b); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if b.RequesterID != "p1" || b.Ride.ID != "ride-1" {
			t.Fatalf("broadcast lost context: %+v", b)
		}
		if b.PickupCoordinates == nil || b.PickupCoordinates.Longitude != 75.77 {
			t.Fatalf("pickup coordinates not lifted: %+v", b.PickupCoordinates)
		}
	}

	ack := readEvent(t, passenger)
	if ack.Event != EventRideRequestAck {
		t.Fatalf("passenger expected ack, got %s", ack.Event)
	}
	var a RideRequestAck
	if err := json.Unmarshal(ack.Data, &a); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !a.Received || a.RidersCount != 2 {
		t.Fatalf("bad ack: %+v", a)
	}

	expectSilence(t, bystander)
}

func TestRideRequestExcludesSendingRider(t *testing.T) {
	hub, srv := startHub(t)
	sender := dial(t, srv, "userId=r1&userType=rider")
	other := dial(t, srv, "userId=r2&userType=rider")
	waitUntil(t, "riders registered", func() bool { return hub.RiderCount() == 2 })

	sendEvent(t, sender, EventRideRequest, RideRequestPayload{Ride: RideSummary{ID: "ride-1"}})

	if env := readEvent(t, other); env.Event != EventNewRideRequest {
		t.Fatalf("other rider expected broadcast, got %s", env.Event)
	}
	// The sender gets the ack but never its own broadcast.
	if env := readEvent(t, sender); env.Event != EventRideRequestAck {
		t.Fatalf("sender expected ack, got %s", env.Event)
	}
	expectSilence(t, sender)
}

func TestAcceptRideRoutedToPassenger(t *testing.T) {
	hub, srv := startHub(t)
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	rider := dial(t, srv, "userId=r1&userType=rider")
	waitUntil(t, "members registered", func() bool { return hub.IsConnected("p1") && hub.IsConnected("r1") })

	sendEvent(t, rider, EventAcceptRide, AcceptRidePayload{
		Ride:        RideSummary{ID: "ride-1"},
		PassengerID: "p1",
	})

	env := readEvent(t, passenger)
	if env.Event != EventRideAccepted {
		t.Fatalf("expected rideAccepted, got %s", env.Event)
	}
	var n RideAcceptedNotice
	if err := json.Unmarshal(env.Data, &n); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if n.RiderID != "r1" {
		t.Fatalf("rider identity not stamped: %+v", n)
	}
	if n.RiderName != "Your driver" {
		t.Fatalf("missing rider name not defaulted: %q", n.RiderName)
	}
}

func TestLocationUpdateRoutedPointToPoint(t *testing.T) {
	hub, srv := startHub(t)
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	rider := dial(t, srv, "userId=r1&userType=rider")
	other := dial(t, srv, "userId=p2&userType=passenger")
	waitUntil(t, "members registered", func() bool {
		return hub.IsConnected("p1") && hub.IsConnected("r1") && hub.IsConnected("p2")
	})

	sendEvent(t, rider, EventUpdateLocation, LocationUpdatePayload{
		RideID:      "ride-1",
		RecipientID: "p1",
		Location:    LocationPoint{Latitude: 31.22, Longitude: 75.77},
	})

	env := readEvent(t, passenger)
	if env.Event != EventLocationUpdated {
		t.Fatalf("expected locationUpdated, got %s", env.Event)
	}
	var p LocationUpdatePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.UserID != "r1" || p.UserType != "rider" {
		t.Fatalf("sender identity not stamped: %+v", p)
	}
	expectSilence(t, other)
}

func TestLocationUpdateMissingRecipientDropped(t *testing.T) {
	hub, srv := startHub(t)
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	rider := dial(t, srv, "userId=r1&userType=rider")
	waitUntil(t, "members registered", func() bool { return hub.IsConnected("p1") && hub.IsConnected("r1") })

	sendEvent(t, rider, EventUpdateLocation, LocationUpdatePayload{RideID: "ride-1"})

	// Dropped silently: no delivery and no error back to the sender.
	expectSilence(t, passenger)
	expectSilence(t, rider)
}

func TestOTPHandshakeRelay(t *testing.T) {
	hub, srv := startHub(t)
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	rider := dial(t, srv, "userId=r1&userType=rider")
	waitUntil(t, "members registered", func() bool { return hub.IsConnected("p1") && hub.IsConnected("r1") })

	sendEvent(t, rider, EventValidateOTP, OTPChallengePayload{
		RideID:      "ride-1",
		OTP:         "4321",
		PassengerID: "p1",
	})
	env := readEvent(t, passenger)
	if env.Event != EventOTPValidationRequest {
		t.Fatalf("expected otpValidationRequest, got %s", env.Event)
	}
	var req OTPValidationRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.RiderID != "r1" || req.EnteredOTP != "4321" {
		t.Fatalf("challenge mangled: %+v", req)
	}

	sendEvent(t, passenger, EventOTPValidationResponse, OTPResponsePayload{
		RideID:  "ride-1",
		RiderID: "r1",
		IsValid: true,
	})
	env = readEvent(t, rider)
	if env.Event != EventOTPValidationResult {
		t.Fatalf("expected otpValidationResult, got %s", env.Event)
	}
	var res OTPValidationResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.IsValid || res.RideID != "ride-1" {
		t.Fatalf("verdict mangled: %+v", res)
	}
}

func TestOfflineRecipientDropped(t *testing.T) {
	hub, srv := startHub(t)
	rider := dial(t, srv, "userId=r1&userType=rider")
	waitUntil(t, "rider registered", func() bool { return hub.IsConnected("r1") })

	sendEvent(t, rider, EventUpdateLocation, LocationUpdatePayload{
		RideID:      "ride-1",
		RecipientID: "ghost",
	})
	expectSilence(t, rider)
}

func TestUnidentifiedSenderCannotRelay(t *testing.T) {
	hub, srv := startHub(t)
	anon := dial(t, srv, "")
	passenger := dial(t, srv, "userId=p1&userType=passenger")
	waitUntil(t, "passenger registered", func() bool { return hub.IsConnected("p1") })

	sendEvent(t, anon, EventUpdateLocation, LocationUpdatePayload{
		RideID:      "ride-1",
		RecipientID: "p1",
	})
	expectSilence(t, passenger)
}

func TestMultipleConnectionsPerIdentity(t *testing.T) {
	hub, srv := startHub(t)
	first := dial(t, srv, "userId=p1&userType=passenger")
	second := dial(t, srv, "userId=p1&userType=passenger")
	rider := dial(t, srv, "userId=r1&userType=rider")
	waitUntil(t, "members registered", func() bool { return hub.ClientCount() == 3 })

	sendEvent(t, rider, EventUpdateLocation, LocationUpdatePayload{
		RideID:      "ride-1",
		RecipientID: "p1",
	})
	for _, conn := range []*websocket.Conn{first, second} {
		if env := readEvent(t, conn); env.Event != EventLocationUpdated {
			t.Fatalf("expected locationUpdated on every connection, got %s", env.Event)
		}
	}
}

func TestHandlerTokenIdentity(t *testing.T) {
	hub, srv := startHub(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "r9",
		"name":     "Raj",
		"userType": "rider",
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	dial(t, srv, "token="+signed)
	waitUntil(t, "token identity joins riders channel", func() bool { return hub.IsConnected("r9") })
	if hub.RiderCount() != 1 {
		t.Fatalf("expected 1 rider, got %d", hub.RiderCount())
	}
}

func TestHandlerRejectsBadToken(t *testing.T) {
	_, srv := startHub(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=not-a-token"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake rejection, got %+v", resp)
	}
}
