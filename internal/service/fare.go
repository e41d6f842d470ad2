package service

import (
	"context"

	"transit/internal/domain"
	"transit/internal/logger"
	"transit/internal/redis"
	"transit/internal/repository"
)

// DefaultFare is charged when a route has no per-kilometer rate.
const DefaultFare = 5.00

// CalculateFare returns distance times the per-kilometer rate, or DefaultFare
// when the route has no rate.
func CalculateFare(route *domain.Route) float64 {
	if route.CostPerKm != 0 {
		return route.Distance * route.CostPerKm
	}
	return DefaultFare
}

// GroupTotal prices a group uniformly: every passenger pays the base fare.
func GroupTotal(baseFare float64, passengerCount int) float64 {
	return baseFare * float64(passengerCount)
}

// FareQuote is the price of one seat on a schedule.
type FareQuote struct {
	ScheduleID string  `json:"scheduleId"`
	RouteID    string  `json:"routeId"`
	RouteName  string  `json:"routeName"`
	BaseFare   float64 `json:"baseFare"`
	Currency   string  `json:"currency"`
}

// FareService quotes schedule fares.
type FareService struct {
	scheduleRepo repository.ScheduleRepository
	routeRepo    repository.RouteRepository
	cache        redis.KV
	log          logger.ILogger
}

// NewFareService creates a new FareService. cache may be nil.
func NewFareService(
	scheduleRepo repository.ScheduleRepository,
	routeRepo repository.RouteRepository,
	cache redis.KV,
	log logger.ILogger,
) *FareService {
	return &FareService{
		scheduleRepo: scheduleRepo,
		routeRepo:    routeRepo,
		cache:        cache,
		log:          log,
	}
}

// QuoteSchedule returns the per-passenger fare for a schedule.
func (s *FareService) QuoteSchedule(ctx context.Context, scheduleID string) (*FareQuote, error) {
	if scheduleID == "" {
		return nil, ErrMissingScheduleID
	}

	key := redis.FareQuotePrefix + scheduleID
	if s.cache != nil {
		var cached FareQuote
		found, err := redis.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			s.log.Warning("fare cache read failed", logger.String("schedule_id", scheduleID), logger.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	schedule, route, err := s.loadScheduleRoute(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	quote := &FareQuote{
		ScheduleID: schedule.ID,
		RouteID:    route.ID,
		RouteName:  route.Name,
		BaseFare:   CalculateFare(route),
		Currency:   domain.CurrencyUSD,
	}

	if s.cache != nil {
		if err := redis.PutJSON(ctx, s.cache, key, quote, redis.FareQuoteTTL); err != nil {
			s.log.Warning("fare cache write failed", logger.String("schedule_id", scheduleID), logger.Error(err))
		}
	}

	return quote, nil
}

func (s *FareService) loadScheduleRoute(ctx context.Context, scheduleID string) (*domain.Schedule, *domain.Route, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, nil, lookupError(err, ErrScheduleNotFound)
	}

	route, err := s.routeRepo.GetByID(ctx, schedule.RouteID)
	if err != nil {
		return nil, nil, lookupError(err, ErrRouteNotFound)
	}

	return schedule, route, nil
}
