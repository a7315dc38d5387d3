package services

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RiderPosition is one entry in the rider geo index.
type RiderPosition struct {
	RiderID   string  `json:"riderId"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	DistanceM float64 `json:"distanceMeters"`
}

// RiderIndex answers "which riders are near this point". It backs the
// nearby-riders query only; ride-request broadcast is deliberately
// unfiltered and goes to the whole riders channel.
type RiderIndex interface {
	Upsert(ctx context.Context, riderID string, lon, lat float64) error
	Remove(ctx context.Context, riderID string) error
	Nearby(ctx context.Context, lon, lat, maxDistanceM float64, limit int) ([]RiderPosition, error)
}

// RedisRiderIndex keeps rider positions in a Redis GEO set.
type RedisRiderIndex struct {
	client *redis.Client
	key    string
}

func NewRedisRiderIndex(addr, password, key string) *RedisRiderIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisRiderIndex{client: c, key: key}
}

func (r *RedisRiderIndex) Upsert(ctx context.Context, riderID string, lon, lat float64) error {
	return r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      riderID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

func (r *RedisRiderIndex) Remove(ctx context.Context, riderID string) error {
	return r.client.ZRem(ctx, r.key, riderID).Err()
}

func (r *RedisRiderIndex) Nearby(ctx context.Context, lon, lat, maxDistanceM float64, limit int) ([]RiderPosition, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     maxDistanceM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]RiderPosition, 0, len(res))
	for _, g := range res {
		out = append(out, RiderPosition{
			RiderID:   g.Name,
			Longitude: g.Longitude,
			Latitude:  g.Latitude,
			DistanceM: g.Dist, // already in the requested unit (meters)
		})
	}
	return out, nil
}

// MemoryRiderIndex is the single-instance fallback when Redis is not
// configured: a naive scan over an in-process map.
type MemoryRiderIndex struct {
	mu     sync.RWMutex
	riders map[string][2]float64 // riderID -> [lon, lat]
}

func NewMemoryRiderIndex() *MemoryRiderIndex {
	return &MemoryRiderIndex{riders: make(map[string][2]float64)}
}

func (m *MemoryRiderIndex) Upsert(ctx context.Context, riderID string, lon, lat float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[riderID] = [2]float64{lon, lat}
	return nil
}

func (m *MemoryRiderIndex) Remove(ctx context.Context, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.riders, riderID)
	return nil
}

func (m *MemoryRiderIndex) Nearby(ctx context.Context, lon, lat, maxDistanceM float64, limit int) ([]RiderPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RiderPosition, 0, len(m.riders))
	for id, pos := range m.riders {
		d := Haversine(lat, lon, pos[1], pos[0])
		if d > maxDistanceM {
			continue
		}
		out = append(out, RiderPosition{RiderID: id, Longitude: pos[0], Latitude: pos[1], DistanceM: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Haversine distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
