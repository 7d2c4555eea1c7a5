package weather

import (
	"fmt"
	"strconv"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

// FilterWindow keeps the samples whose HH:MM label falls in [start, end].
// Labels are zero padded so string order is time order.
func FilterWindow(samples []types.WeatherSample, start, end string) []types.WeatherSample {
	var out []types.WeatherSample
	for _, s := range samples {
		if s.Time >= start && s.Time <= end {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate summarizes samples. It returns nil for an empty slice.
func Aggregate(samples []types.WeatherSample) *types.WeatherSummary {
	var (
		n                          int
		temp, feels, precip, cloud float64
		maxPrecip, maxUV           float64
		conditionOrder             []string
	)
	conditionCounts := map[string]int{}
	for _, s := range samples {
		if n == 0 {
			maxPrecip, maxUV = s.PrecipProb, s.UVIndex
		}
		n++
		temp += s.Temp
		feels += s.FeelsLike
		precip += s.PrecipProb
		cloud += s.CloudCover
		maxPrecip = max(maxPrecip, s.PrecipProb)
		maxUV = max(maxUV, s.UVIndex)
		if _, seen := conditionCounts[s.Conditions]; !seen {
			conditionOrder = append(conditionOrder, s.Conditions)
		}
		conditionCounts[s.Conditions]++
	}
	if n == 0 {
		return nil
	}

	// ties go to the condition seen first
	predominant := ""
	best := 0
	for _, c := range conditionOrder {
		if conditionCounts[c] > best {
			predominant, best = c, conditionCounts[c]
		}
	}

	count := float64(n)
	return &types.WeatherSummary{
		AvgTemp:               temp / count,
		AvgFeelsLike:          feels / count,
		AvgPrecipProb:         precip / count,
		MaxPrecipProb:         maxPrecip,
		PredominantConditions: predominant,
		AvgCloudCover:         cloud / count,
		MaxUVIndex:            maxUV,
	}
}

// Summarize renders the summary as the sentence appended to the prompt.
func Summarize(s *types.WeatherSummary) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("Average temperature: %.1f°F (feels like %.1f°F). "+
		"Average precipitation probability: %.1f%%, with a maximum of %s%%. "+
		"Predominant conditions: %s. Average cloud cover: %.1f%%. Maximum UV index: %s.",
		s.AvgTemp, s.AvgFeelsLike,
		s.AvgPrecipProb, formatMax(s.MaxPrecipProb),
		s.PredominantConditions, s.AvgCloudCover, formatMax(s.MaxUVIndex))
}

func formatMax(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
