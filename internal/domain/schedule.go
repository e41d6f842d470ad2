package domain

import "time"

// Stop is a named stop on a route.
type Stop struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Route is a bus route. Read-only for booking.
type Route struct {
	ID        string
	Name      string
	Distance  float64 // In kilometers
	CostPerKm float64
	Stops     []Stop
}

// Snapshot returns the route details frozen into a journey. Start and end
// locations are nil when the route has fewer than two stops.
func (r *Route) Snapshot() *RouteSnapshot {
	snapshot := &RouteSnapshot{
		RouteID:   r.ID,
		RouteName: r.Name,
	}
	if len(r.Stops) < 2 {
		return snapshot
	}
	first, last := r.Stops[0], r.Stops[len(r.Stops)-1]
	snapshot.StartLocation = &Location{Name: first.Name, Lat: first.Lat, Lng: first.Lng}
	snapshot.EndLocation = &Location{Name: last.Name, Lat: last.Lat, Lng: last.Lng}
	return snapshot
}

// Schedule is a run of a route on given days and times.
type Schedule struct {
	ID         string
	RouteID    string
	DriverID   string
	DaysOfWeek []string
	StartTime  time.Time
	EndTime    time.Time
	Status     string
}
