package types

// WeatherSample is one hourly forecast observation.
type WeatherSample struct {
	Time       string  `json:"time"` // HH:MM
	Temp       float64 `json:"temp"`
	FeelsLike  float64 `json:"feelslike"`
	PrecipProb float64 `json:"precipprob"`
	Conditions string  `json:"conditions"`
	CloudCover float64 `json:"cloudcover"`
	UVIndex    float64 `json:"uvindex"`
}

// WeatherSummary aggregates the samples of a time window.
type WeatherSummary struct {
	AvgTemp               float64 `json:"avg_temp"`
	AvgFeelsLike          float64 `json:"avg_feelslike"`
	AvgPrecipProb         float64 `json:"avg_precipprob"`
	MaxPrecipProb         float64 `json:"max_precipprob"`
	PredominantConditions string  `json:"predominant_conditions"`
	AvgCloudCover         float64 `json:"avg_cloudcover"`
	MaxUVIndex            float64 `json:"max_uvindex"`
}
