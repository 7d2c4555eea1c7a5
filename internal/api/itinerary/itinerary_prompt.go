package itinerary

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

const plannerTemplate = `You are a travel itinerary planner. Create a memorable and engaging sightseeing itinerary for visitors to %s on %s. ` +
	`The itinerary should cover the time range from %s to %s. ` +
	`Ensure that the itinerary is well-paced, with time allocated for each activity, including travel time between locations. ` +
	`The itinerary should cater to a leisurely and enjoyable experience, including suggestions for dining, leisure, and unique sightseeing spots. ` +
	`Please ensure that the venues are open during the specified time range and that the itinerary is feasible.`

const closingConstraints = `Do not include any locations, activities, or suggestions that are not present in the provided data. ` +
	`The itinerary must include at least three distinct destinations.`

const weatherClause = `Take the expected weather into account when choosing between indoor and outdoor activities. %s`

func plannerIntro(params types.TripParams) (string, error) {
	day, err := params.Weekday()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(plannerTemplate, params.Address, day, params.StartTime, params.EndTime), nil
}

// BuildItineraryPrompt renders the one-shot instruction. The weather clause is
// only added when weatherSummary is non-empty.
func BuildItineraryPrompt(params types.TripParams, weatherSummary string) (string, error) {
	intro, err := plannerIntro(params)
	if err != nil {
		return "", err
	}
	parts := []string{intro}
	if s := strings.TrimSpace(weatherSummary); s != "" {
		parts = append(parts, fmt.Sprintf(weatherClause, s))
	}
	parts = append(parts, closingConstraints)
	return strings.Join(parts, " "), nil
}

// BuildChatSystemPrompt renders the system message that opens a chat transcript.
func BuildChatSystemPrompt(params types.TripParams) (string, error) {
	return BuildItineraryPrompt(params, "")
}
