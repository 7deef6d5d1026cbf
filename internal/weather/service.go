package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	// ErrConfiguration marks a service built without a required collaborator.
	ErrConfiguration = errors.New("weather service is not fully configured")
	// ErrInternal wraps unexpected failures caught at the service boundary.
	ErrInternal = errors.New("internal error")
	// ErrNoUsableLocation is returned by Refresh when an address yields no candidates.
	ErrNoUsableLocation = errors.New("no usable location")
	// ErrLocationUnresolved is returned by Refresh when no candidate geocodes.
	ErrLocationUnresolved = errors.New("location could not be resolved")
)

// Outcome names the terminal state of one resolution.
type Outcome string

const (
	OutcomeUnauthenticated     Outcome = "unauthenticated"
	OutcomeNoLocation          Outcome = "no_location"
	OutcomeCacheFresh          Outcome = "cache_fresh"
	OutcomeRefetched           Outcome = "refetched"
	OutcomeStaleFallback       Outcome = "stale_fallback"
	OutcomeUnresolved          Outcome = "location_unresolved"
	OutcomeProviderUnavailable Outcome = "provider_unavailable"
)

const (
	msgUnauthorized        = "Unauthorized"
	msgNoLocation          = "No usable location on your profile. Please set district or pincode"
	msgUnresolved          = "Weather unavailable: location could not be resolved"
	msgProviderUnavailable = "Weather unavailable: weather provider unavailable"
	msgStale               = "Live weather is temporarily unavailable; showing the last known reading"
)

// Policy carries the tunables injected once at process start.
type Policy struct {
	FreshTTL     time.Duration
	StaleTTL     time.Duration
	Country      string
	DefaultState string

	AuthTimeout    time.Duration
	AddressTimeout time.Duration
	CacheTimeout   time.Duration
}

// DefaultPolicy returns the 30 minute fresh / 120 minute stale policy for India.
func DefaultPolicy() Policy {
	return Policy{
		FreshTTL:       30 * time.Minute,
		StaleTTL:       120 * time.Minute,
		Country:        "India",
		AuthTimeout:    5 * time.Second,
		AddressTimeout: 5 * time.Second,
		CacheTimeout:   3 * time.Second,
	}
}

// Deps bundles the service collaborators.
type Deps struct {
	Auth      Authenticator
	Addresses AddressStore
	Resolver  *Resolver
	Fetcher   *Fetcher
	Cache     CacheStore
}

// Result is what one resolution produced. The HTTP layer maps it onto a status and body.
type Result struct {
	Outcome         Outcome
	Data            *WeatherPayload
	Cached          bool
	Stale           bool
	CacheAgeMinutes int
	Message         string

	CacheKey         string
	Candidate        *LocationCandidate
	SummaryProvider  SummaryProvider
	ForecastProvider string
}

// Service orchestrates address lookup, caching, geocoding and forecasting for one caller.
type Service struct {
	policy Policy
	deps   Deps
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for cache ages and payload timestamps.
// The service keeps its own copy of the fetcher so a shared one is left untouched.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		if s.deps.Fetcher != nil {
			f := *s.deps.Fetcher
			f.now = now
			s.deps.Fetcher = &f
		}
	}
}

// NewService creates a new Service.
func NewService(policy Policy, deps Deps, opts ...Option) *Service {
	s := &Service{
		policy: policy,
		deps:   deps,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) configured() bool {
	d := s.deps
	return d.Auth != nil && d.Addresses != nil && d.Resolver != nil && d.Fetcher != nil && d.Cache != nil
}

// Resolve runs the full pipeline for the caller identified by bearerToken.
// Expected degradations are reported through Result; only configuration
// problems and unexpected failures are returned as errors.
func (s *Service) Resolve(ctx context.Context, bearerToken string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: [weather] panic during resolve: %v", r)
			res, err = Result{}, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	if !s.configured() {
		return Result{}, ErrConfiguration
	}

	callerID, ok := s.authenticate(ctx, bearerToken)
	if !ok {
		return Result{Outcome: OutcomeUnauthenticated, Message: msgUnauthorized}, nil
	}

	rec, ok := s.loadAddress(ctx, callerID)
	if !ok {
		return Result{Outcome: OutcomeNoLocation, Message: msgNoLocation}, nil
	}

	candidates := BuildCandidates(rec, s.policy.Country, s.policy.DefaultState)
	if len(candidates) == 0 {
		return Result{Outcome: OutcomeNoLocation, Message: msgNoLocation}, nil
	}
	return s.serve(ctx, candidates), nil
}

// Refresh fetches fresh weather for an address and writes the cache, bypassing the fresh-cache check.
func (s *Service) Refresh(ctx context.Context, rec AddressRecord) error {
	if s.deps.Resolver == nil || s.deps.Fetcher == nil || s.deps.Cache == nil {
		return ErrConfiguration
	}
	candidates := BuildCandidates(rec, s.policy.Country, s.policy.DefaultState)
	if len(candidates) == 0 {
		return ErrNoUsableLocation
	}
	point, matched, ok := s.deps.Resolver.Resolve(ctx, candidates)
	if !ok {
		return ErrLocationUnresolved
	}
	payload, info, err := s.deps.Fetcher.Fetch(ctx, point, matched.Query)
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}
	return s.writeCache(ctx, CacheKey(candidates[0].Query), candidates[0].Query, payload, info)
}

func (s *Service) authenticate(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	ctx, cancel := withOptionalTimeout(ctx, s.policy.AuthTimeout)
	defer cancel()

	callerID, err := s.deps.Auth.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredential) {
			log.Printf("WARN: [weather] identity verification failed: %v", err)
		}
		return "", false
	}
	return callerID, callerID != ""
}

func (s *Service) loadAddress(ctx context.Context, callerID string) (AddressRecord, bool) {
	ctx, cancel := withOptionalTimeout(ctx, s.policy.AddressTimeout)
	defer cancel()

	rec, ok, err := s.deps.Addresses.GetAddress(ctx, callerID)
	if err != nil {
		log.Printf("WARN: [weather] address lookup failed caller=%s: %v", callerID, err)
		return AddressRecord{}, false
	}
	return rec, ok
}

func (s *Service) serve(ctx context.Context, candidates []LocationCandidate) Result {
	primary := candidates[0]
	key := CacheKey(primary.Query)

	entry, hit := s.readCache(ctx, key)
	if hit {
		age := entry.AgeMinutes(s.now())
		if age <= wholeMinutes(s.policy.FreshTTL) {
			return cachedResult(key, entry, age, false, "")
		}
	}

	point, matched, ok := s.deps.Resolver.Resolve(ctx, candidates)
	if !ok {
		return s.staleOr(key, entry, hit, OutcomeUnresolved, msgUnresolved)
	}

	payload, info, err := s.deps.Fetcher.Fetch(ctx, point, matched.Query)
	if err != nil {
		log.Printf("WARN: [weather] forecast failed key=%s: %v", key, err)
		res := s.staleOr(key, entry, hit, OutcomeProviderUnavailable, msgProviderUnavailable)
		res.Candidate = &matched
		return res
	}

	if err := s.writeCache(ctx, key, primary.Query, payload, info); err != nil {
		log.Printf("ERROR: [weather] cache write failed key=%s: %v", key, err)
	}

	return Result{
		Outcome:          OutcomeRefetched,
		Data:             &payload,
		CacheKey:         key,
		Candidate:        &matched,
		SummaryProvider:  info.Summary,
		ForecastProvider: info.Provider,
	}
}

// staleOr serves a cached entry within the stale window, or the given unavailable outcome.
func (s *Service) staleOr(key string, entry CacheEntry, hit bool, outcome Outcome, message string) Result {
	if hit {
		age := entry.AgeMinutes(s.now())
		if age <= wholeMinutes(s.policy.StaleTTL) {
			return cachedResult(key, entry, age, true, msgStale)
		}
	}
	return Result{Outcome: outcome, Message: message, CacheKey: key}
}

func cachedResult(key string, entry CacheEntry, age int, stale bool, message string) Result {
	payload := entry.Payload
	outcome := OutcomeCacheFresh
	if stale {
		outcome = OutcomeStaleFallback
	}
	return Result{
		Outcome:          outcome,
		Data:             &payload,
		Cached:           true,
		Stale:            stale,
		CacheAgeMinutes:  age,
		Message:          message,
		CacheKey:         key,
		SummaryProvider:  entry.SummaryProvider,
		ForecastProvider: entry.Provider,
	}
}

func (s *Service) readCache(ctx context.Context, key string) (CacheEntry, bool) {
	ctx, cancel := withOptionalTimeout(ctx, s.policy.CacheTimeout)
	defer cancel()
	return s.deps.Cache.Read(ctx, key)
}

// writeCache detaches from the caller's cancellation so a completed fetch is still persisted.
func (s *Service) writeCache(ctx context.Context, key, locationKey string, payload WeatherPayload, info FetchInfo) error {
	ctx, cancel := withOptionalTimeout(context.WithoutCancel(ctx), s.policy.CacheTimeout)
	defer cancel()
	return s.deps.Cache.Write(ctx, key, locationKey, payload, info.Provider, info.Summary)
}

func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}
