package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/farm-weather/internal/telemetry"
	"github.com/i474232898/farm-weather/internal/weather"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-Id"

const (
	endpointWeather       = "weather"
	endpointFarmerWeather = "farmer-weather"

	outcomeMethodNotAllowed = "method_not_allowed"
	outcomeMisconfigured    = "misconfigured"
	outcomeInternal         = "internal_error"
)

var validate = validator.New()

// WeatherResolver is the part of weather.Service the handlers need.
type WeatherResolver interface {
	Resolve(ctx context.Context, bearerToken string) (weather.Result, error)
}

// weatherResponse is the body for every outcome that reaches the service.
type weatherResponse struct {
	Data            *weather.WeatherPayload `json:"data"`
	Cached          bool                    `json:"cached"`
	Stale           *bool                   `json:"stale,omitempty"`
	CacheAgeMinutes *int                    `json:"cache_age_minutes,omitempty"`
	Message         string                  `json:"message,omitempty"`
}

type handler struct {
	svc  WeatherResolver
	sink telemetry.Sink
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc WeatherResolver, sink telemetry.Sink) {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	h := &handler{svc: svc, sink: sink}

	// All is used so that non-POST methods reach the handler and are reported.
	app.All("/api/v1/weather", h.weather(endpointWeather))
	app.All("/farmer-weather", h.weather(endpointFarmerWeather))
}

// ErrorHandler renders every error response in one shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func (h *handler) weather(endpoint string) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		reqID := requestID(c.Get(HeaderRequestID))
		c.Set(HeaderRequestID, reqID)

		ev := telemetry.Event{RequestID: reqID, Endpoint: endpoint}
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: [http] panic request_id=%s: %v", reqID, r)
				ev.Outcome, ev.HTTPStatus, ev.Error = outcomeInternal, fiber.StatusInternalServerError, fmt.Sprint(r)
				err = fiber.NewError(fiber.StatusInternalServerError, "internal error")
			}
			ev.LatencyMs = time.Since(start).Milliseconds()
			h.sink.Emit(c.UserContext(), ev)
		}()

		if c.Method() != fiber.MethodPost {
			c.Set(fiber.HeaderAllow, fiber.MethodPost)
			ev.Outcome, ev.HTTPStatus = outcomeMethodNotAllowed, fiber.StatusMethodNotAllowed
			return fiber.NewError(fiber.StatusMethodNotAllowed, "method not allowed")
		}

		res, rerr := h.svc.Resolve(c.UserContext(), bearerToken(c.Get(fiber.HeaderAuthorization)))
		if rerr != nil {
			ev.HTTPStatus, ev.Error = fiber.StatusInternalServerError, rerr.Error()
			if errors.Is(rerr, weather.ErrConfiguration) {
				log.Printf("ERROR: [http] request_id=%s: %v", reqID, rerr)
				ev.Outcome = outcomeMisconfigured
				return fiber.NewError(fiber.StatusInternalServerError, "server misconfigured")
			}
			log.Printf("ERROR: [http] request_id=%s: %v", reqID, rerr)
			ev.Outcome = outcomeInternal
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}

		status := statusFor(res.Outcome)
		fillEvent(&ev, res, status)

		if res.Outcome == weather.OutcomeUnauthenticated {
			return fiber.NewError(status, res.Message)
		}
		return c.Status(status).JSON(toResponse(res))
	}
}

// statusFor maps an outcome onto its HTTP status. Degraded outcomes stay 200.
func statusFor(o weather.Outcome) int {
	switch o {
	case weather.OutcomeUnauthenticated:
		return fiber.StatusUnauthorized
	case weather.OutcomeProviderUnavailable:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusOK
	}
}

func toResponse(res weather.Result) weatherResponse {
	out := weatherResponse{
		Data:    res.Data,
		Cached:  res.Cached,
		Message: res.Message,
	}
	if res.Cached {
		stale, age := res.Stale, res.CacheAgeMinutes
		out.Stale = &stale
		out.CacheAgeMinutes = &age
	}
	return out
}

func fillEvent(ev *telemetry.Event, res weather.Result, status int) {
	ev.Outcome = string(res.Outcome)
	ev.HTTPStatus = status
	ev.CacheKey = res.CacheKey
	ev.Cached = res.Cached
	ev.Stale = res.Stale
	ev.SummaryProvider = string(res.SummaryProvider)
	ev.ForecastProvider = res.ForecastProvider
	if res.Candidate != nil {
		ev.CandidateLabel = string(res.Candidate.Label)
		ev.CandidateQuery = res.Candidate.Query
	}
	if res.Outcome == weather.OutcomeProviderUnavailable || res.Outcome == weather.OutcomeUnresolved {
		ev.Error = res.Message
	}
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestID keeps a sane inbound id and otherwise mints a new one.
func requestID(inbound string) string {
	inbound = strings.TrimSpace(inbound)
	if inbound != "" && validate.Var(inbound, "max=128,printascii") == nil {
		return inbound
	}
	return uuid.NewString()
}
