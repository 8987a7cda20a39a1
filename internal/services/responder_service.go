package services

import (
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services/dto"

	"gorm.io/gorm"
)

const activeRespondersCacheKey = "responders:active"

// ResponderSnapshot - запись справочника спасателей, как она лежит в кэше
type ResponderSnapshot struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        models.UserRole `json:"role"`
	ContactInfo string          `json:"contactInfo"`
	Latitude    *float64        `json:"latitude,omitempty"`
	Longitude   *float64        `json:"longitude,omitempty"`
}

type ResponderService interface {
	ActiveResponders(db *gorm.DB) ([]ResponderSnapshot, error)
	FindNearby(db *gorm.DB, latitude, longitude float64, opts algorithms.Options) ([]dto.NearbyResponder, error)
	// Rank - ближайшие из переданных спасателей, без обращения к справочнику
	Rank(latitude, longitude float64, responders []ResponderSnapshot, opts algorithms.Options) []dto.NearbyResponder
	Invalidate(db *gorm.DB)
}

type ResponderServiceImpl struct {
	userRepo repositories.UserRepository
	store    cache.Store
	ttl      time.Duration
	defaults algorithms.Options
}

func NewResponderService(
	userRepo repositories.UserRepository,
	store cache.Store,
	ttl time.Duration,
	defaults algorithms.Options,
) ResponderService {
	return &ResponderServiceImpl{
		userRepo: userRepo,
		store:    store,
		ttl:      ttl,
		defaults: defaults,
	}
}

// ActiveResponders читает снимок из TTL-кэша; при промахе или ошибке кэша идет в БД
func (s *ResponderServiceImpl) ActiveResponders(db *gorm.DB) ([]ResponderSnapshot, error) {
	ctx := ctxOf(db)

	if s.store != nil {
		var cached []ResponderSnapshot
		ok, err := cache.GetJSON(ctx, s.store, activeRespondersCacheKey, &cached)
		if err != nil {
			logger.CtxWithError(ctx, "Responder cache read failed", err)
		} else if ok {
			return cached, nil
		}
	}

	users, err := s.userRepo.FindActiveResponders(db)
	if err != nil {
		return nil, handleReportError(err)
	}

	snapshot := make([]ResponderSnapshot, 0, len(users))
	for _, u := range users {
		snapshot = append(snapshot, ResponderSnapshot{
			ID:          u.ID,
			Name:        u.Name,
			Role:        u.Role,
			ContactInfo: u.ContactInfo(),
			Latitude:    u.Latitude,
			Longitude:   u.Longitude,
		})
	}

	if s.store != nil {
		if err := cache.SetJSON(ctx, s.store, activeRespondersCacheKey, snapshot, s.ttl); err != nil {
			logger.CtxWithError(ctx, "Responder cache write failed", err)
		}
	}
	return snapshot, nil
}

func (s *ResponderServiceImpl) FindNearby(db *gorm.DB, latitude, longitude float64, opts algorithms.Options) ([]dto.NearbyResponder, error) {
	responders, err := s.ActiveResponders(db)
	if err != nil {
		return nil, err
	}
	return s.Rank(latitude, longitude, responders, opts), nil
}

func (s *ResponderServiceImpl) Rank(latitude, longitude float64, responders []ResponderSnapshot, opts algorithms.Options) []dto.NearbyResponder {
	if opts.MaxDistanceMeters <= 0 {
		opts.MaxDistanceMeters = s.defaults.MaxDistanceMeters
	}
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}

	byID := make(map[string]ResponderSnapshot, len(responders))
	candidates := make([]algorithms.Candidate, 0, len(responders))
	for _, r := range responders {
		byID[r.ID] = r
		candidates = append(candidates, algorithms.Candidate{ID: r.ID, Latitude: r.Latitude, Longitude: r.Longitude})
	}

	matches := algorithms.Nearest(latitude, longitude, candidates, opts)
	result := make([]dto.NearbyResponder, 0, len(matches))
	for _, m := range matches {
		r := byID[m.Candidate.ID]
		result = append(result, dto.NearbyResponder{
			ID:          r.ID,
			Name:        r.Name,
			Role:        r.Role,
			ContactInfo: r.ContactInfo,
			Latitude:    *r.Latitude,
			Longitude:   *r.Longitude,
			Distance:    m.DistanceMeters,
		})
	}
	return result
}

func (s *ResponderServiceImpl) Invalidate(db *gorm.DB) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctxOf(db), activeRespondersCacheKey); err != nil {
		logger.CtxWithError(ctxOf(db), "Responder cache invalidation failed", err)
	}
}
