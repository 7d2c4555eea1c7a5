package itinerary

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-rag/internal/api"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GetItinerary godoc
// @Summary      Generate an itinerary
// @Description  Retrieves destinations of one country and asks the model for a day plan. Weather context is added when lat and lng are given.
// @Tags         Itinerary
// @Produce      json
// @Param        date       query  string  true   "Trip date (YYYY-MM-DD)"
// @Param        country    query  string  true   "Country to retrieve destinations from"
// @Param        startTime  query  string  true   "Start of the day (HH:MM)"
// @Param        endTime    query  string  true   "End of the day (HH:MM)"
// @Param        address    query  string  true   "Where the visitors are"
// @Param        lat        query  number  false  "Latitude for the weather forecast"
// @Param        lng        query  number  false  "Longitude for the weather forecast (lon is also accepted)"
// @Success      200 {object} types.ItineraryResult
// @Failure      400 {object} types.Response "Invalid request"
// @Router       /itinerary [get]
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/itinerary"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetItinerary"))

	q := r.URL.Query()
	params, err := tripParams(q.Get("date"), q.Get("country"), q.Get("startTime"), q.Get("endTime"), q.Get("address"))
	if err != nil {
		l.WarnContext(ctx, "Invalid itinerary request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := types.ItineraryRequest{TripParams: params}
	lng := q.Get("lng")
	if lng == "" {
		lng = q.Get("lon")
	}
	if req.Lat, err = optionalFloat("lat", q.Get("lat")); err == nil {
		req.Lng, err = optionalFloat("lng", lng)
	}
	if err != nil {
		l.WarnContext(ctx, "Invalid coordinates", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("country", string(params.Country)), attribute.Bool("weather.requested", req.HasCoordinates()))

	result := h.service.GenerateItinerary(ctx, req)
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// PostChat godoc
// @Summary      Continue an itinerary conversation
// @Description  Answers the latest query with the conversation history and freshly retrieved destinations.
// @Tags         Itinerary
// @Accept       json
// @Produce      json
// @Param        request body types.ChatRequest true "Conversation so far and trip parameters"
// @Success      200 {object} types.ItineraryResult
// @Failure      400 {object} types.Response "Invalid request"
// @Router       /chat [post]
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "PostChat", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/chat"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "PostChat"))

	var body types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		if !errors.Is(err, types.ErrInvalidRequest) {
			l.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	params, err := tripParams(body.Date, body.Country, body.StartTime, body.EndTime, body.Address)
	if err != nil {
		l.WarnContext(ctx, "Invalid chat request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "query is required")
		return
	}
	for i, m := range body.Histories {
		if err := m.Validate(); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("histories[%d]: %s", i, err.Error()))
			return
		}
	}
	span.SetAttributes(attribute.String("country", string(params.Country)), attribute.Int("history.length", len(body.Histories)))

	result := h.service.Chat(ctx, types.ChatItineraryRequest{
		TripParams: params,
		History:    body.Histories,
		Query:      body.Query,
	})
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// GetCountries godoc
// @Summary      List supported countries
// @Tags         Itinerary
// @Produce      json
// @Success      200 {object} types.CountriesResponse
// @Router       /countries [get]
func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, types.CountriesResponse{Countries: types.SupportedCountries()})
}

func tripParams(date, country, startTime, endTime, address string) (types.TripParams, error) {
	c, err := types.ParseCountry(country)
	if err != nil {
		return types.TripParams{}, err
	}
	start, err := types.ParseTimeLabel(startTime)
	if err != nil {
		return types.TripParams{}, err
	}
	end, err := types.ParseTimeLabel(endTime)
	if err != nil {
		return types.TripParams{}, err
	}
	params := types.TripParams{
		Date:      strings.TrimSpace(date),
		StartTime: start,
		EndTime:   end,
		Address:   strings.TrimSpace(address),
		Country:   c,
	}
	if err := params.Validate(); err != nil {
		return types.TripParams{}, err
	}
	return params, nil
}

func optionalFloat(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", types.ErrInvalidRequest, name)
	}
	return &v, nil
}

