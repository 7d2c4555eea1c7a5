package types

import (
	"fmt"
	"strings"
)

// Country is the closed set of countries the destination dataset covers.
// Values match complete_address.country in the dataset.
type Country string

const (
	CountryJapan       Country = "Japan"
	CountrySouthKorea  Country = "South Korea"
	CountryChina       Country = "China"
	CountryTaiwan      Country = "Taiwan"
	CountryVietnam     Country = "Vietnam"
	CountryThailand    Country = "Thailand"
	CountrySingapore   Country = "Singapore"
	CountryMalaysia    Country = "Malaysia"
	CountryIndonesia   Country = "Indonesia"
	CountryPhilippines Country = "Philippines"
	CountryCambodia    Country = "Cambodia"
	CountryLaos        Country = "Laos"
)

var supportedCountries = []Country{
	CountryJapan,
	CountrySouthKorea,
	CountryChina,
	CountryTaiwan,
	CountryVietnam,
	CountryThailand,
	CountrySingapore,
	CountryMalaysia,
	CountryIndonesia,
	CountryPhilippines,
	CountryCambodia,
	CountryLaos,
}

// SupportedCountries returns a copy of the enumeration in display order.
func SupportedCountries() []Country {
	out := make([]Country, len(supportedCountries))
	copy(out, supportedCountries)
	return out
}

// ParseCountry matches s case-insensitively and returns the canonical value.
func ParseCountry(s string) (Country, error) {
	s = strings.TrimSpace(s)
	for _, c := range supportedCountries {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCountry, s)
}

func (c Country) Valid() bool {
	for _, sc := range supportedCountries {
		if sc == c {
			return true
		}
	}
	return false
}

// RetrievalFilter restricts retrieval to a single complete_address.country.
type RetrievalFilter struct {
	Country Country
}

// NewRetrievalFilter validates country before any retrieval happens.
func NewRetrievalFilter(country string) (RetrievalFilter, error) {
	c, err := ParseCountry(country)
	if err != nil {
		return RetrievalFilter{}, err
	}
	return RetrievalFilter{Country: c}, nil
}
