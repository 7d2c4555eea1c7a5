package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeLabelLayout = "15:04"

	// FailedItineraryMessage is returned to users once every attempt failed.
	FailedItineraryMessage = "An error occurred. Please try again later."
)

// TripParams are the trip parameters shared by itinerary and chat requests.
type TripParams struct {
	Date      string
	StartTime string
	EndTime   string
	Address   string
	Country   Country
}

// Weekday derives the day name from Date.
func (p TripParams) Weekday() (time.Weekday, error) {
	d, err := time.Parse(DateLayout, p.Date)
	if err != nil {
		return 0, fmt.Errorf("%w: date %q must use YYYY-MM-DD", ErrInvalidRequest, p.Date)
	}
	return d.Weekday(), nil
}

// Validate checks the fields that must be well formed before retrieval.
func (p TripParams) Validate() error {
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidRequest)
	}
	if !p.Country.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCountry, p.Country)
	}
	if _, err := p.Weekday(); err != nil {
		return err
	}
	start, err := ParseTimeLabel(p.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseTimeLabel(p.EndTime)
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("%w: endTime %s is before startTime %s", ErrInvalidRequest, end, start)
	}
	return nil
}

// ParseTimeLabel accepts H:MM, HH:MM or HH:MM:SS and returns zero-padded HH:MM,
// which keeps lexicographic comparison equal to chronological comparison.
func ParseTimeLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLabelLayout), nil
		}
	}
	return "", fmt.Errorf("%w: time %q must use HH:MM", ErrInvalidRequest, s)
}

// ItineraryRequest is the input of a one-shot itinerary generation.
type ItineraryRequest struct {
	TripParams
	Lat *float64
	Lng *float64
}

// HasCoordinates reports whether weather enrichment can run.
func (r ItineraryRequest) HasCoordinates() bool {
	return r.Lat != nil && r.Lng != nil
}

// ChatItineraryRequest is the input of a conversational turn.
type ChatItineraryRequest struct {
	TripParams
	History []ChatMessage
	Query   string
}

// ItineraryResult is the payload of both endpoints. Error is set only when
// every attempt failed.
type ItineraryResult struct {
	Response string              `json:"response"`
	Metadata []DestinationRecord `json:"metadata"`
	Weather  *WeatherSummary     `json:"weather,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Failed reports whether the result is the terminal failure payload.
func (r *ItineraryResult) Failed() bool {
	return r.Error != ""
}

// NewFailedItineraryResult builds the failure payload from the last error.
func NewFailedItineraryResult(err error) *ItineraryResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ItineraryResult{
		Response: FailedItineraryMessage,
		Metadata: []DestinationRecord{},
		Error:    msg,
	}
}
