package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"rideon-backend/internal/models"
	"rideon-backend/internal/observability"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

const riderRole = models.RoleRider

// Client is one live websocket connection with its handshake identity.
// UserID may be empty for connections that announced no identity; those
// receive nothing and their events are dropped.
type Client struct {
	ID       string
	UserID   string
	UserType string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
}

func NewClient(id, userID, userType string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		UserType: userType,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
	}
}

// ReadPump pumps events from the connection into the hub. Handlers are
// fire-and-forget: nothing here waits for a response, and malformed
// payloads are dropped with a warning, never raised back to the sender.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "user_id", c.UserID, "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.hub.logger.Warn("invalid relay frame", "user_id", c.UserID, "error", err)
			continue
		}
		c.handleEvent(env)
	}
}

func (c *Client) handleEvent(env Envelope) {
	observability.RelayEventsTotal.WithLabelValues(env.Event).Inc()

	if env.Event == EventPing {
		c.reply(EventPong, map[string]int64{"timestamp": time.Now().Unix()})
		return
	}
	if c.UserID == "" {
		c.drop(env.Event, "unidentified sender")
		return
	}

	switch env.Event {
	case EventRideRequest:
		var p RideRequestPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.drop(env.Event, err.Error())
			return
		}
		out := RideRequestBroadcast{
			RideRequestPayload: p,
			RequesterID:        c.UserID,
			RequesterType:      c.UserType,
			Timestamp:          time.Now().Unix(),
		}
		if coords := p.Ride.PickupLocation.Coordinates; len(coords) == 2 {
			out.PickupCoordinates = &LocationPoint{Latitude: coords[1], Longitude: coords[0]}
		}
		c.hub.BroadcastToRiders(EventNewRideRequest, out, c)
		c.reply(EventRideRequestAck, RideRequestAck{
			Received:    true,
			RidersCount: c.hub.RiderCount(),
			Timestamp:   time.Now().Unix(),
		})

	case EventAcceptRide:
		var p AcceptRidePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.drop(env.Event, err.Error())
			return
		}
		if p.PassengerID == "" {
			c.drop(env.Event, "missing passengerId")
			return
		}
		if p.RiderName == "" {
			p.RiderName = "Your driver"
		}
		c.hub.SendToIdentity(p.PassengerID, EventRideAccepted, RideAcceptedNotice{
			AcceptRidePayload: p,
			RiderID:           c.UserID,
			Timestamp:         time.Now().Unix(),
		})

	case EventUpdateLocation:
		var p LocationUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.drop(env.Event, err.Error())
			return
		}
		if p.RecipientID == "" {
			c.drop(env.Event, "missing recipientId")
			return
		}
		p.UserID = c.UserID
		p.UserType = c.UserType
		c.hub.SendToIdentity(p.RecipientID, EventLocationUpdated, p)

	case EventValidateOTP:
		var p OTPChallengePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.drop(env.Event, err.Error())
			return
		}
		if p.PassengerID == "" {
			c.drop(env.Event, "missing passengerId")
			return
		}
		c.hub.SendToIdentity(p.PassengerID, EventOTPValidationRequest, OTPValidationRequest{
			RideID:     p.RideID,
			RiderID:    c.UserID,
			EnteredOTP: p.OTP,
		})

	case EventOTPValidationResponse:
		var p OTPResponsePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.drop(env.Event, err.Error())
			return
		}
		if p.RiderID == "" {
			c.drop(env.Event, "missing riderId")
			return
		}
		c.hub.SendToIdentity(p.RiderID, EventOTPValidationResult, OTPValidationResult{
			RideID:  p.RideID,
			IsValid: p.IsValid,
		})

	default:
		c.drop(env.Event, "unknown event")
	}
}

func (c *Client) reply(event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) drop(event, reason string) {
	observability.RelayDroppedTotal.WithLabelValues(event).Inc()
	c.hub.logger.Warn("relay event dropped",
		"event", event, "user_id", c.UserID, "reason", reason)
}

// WritePump pumps routed messages from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
