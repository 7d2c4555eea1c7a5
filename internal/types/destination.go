package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LooseString decodes from a JSON string, number or null.
// Scraped datasets are inconsistent about ids and postal codes.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = LooseString(n.String())
	return nil
}

// CID is the canonical external identifier of a destination.
type CID = LooseString

type CompleteAddress struct {
	Borough    LooseString `json:"borough"`
	Street     LooseString `json:"street"`
	City       LooseString `json:"city"`
	PostalCode LooseString `json:"postal_code"`
	State      LooseString `json:"state"`
	Country    LooseString `json:"country"`
}

// DestinationRecord is one entry of the destinations dataset.
// The raw JSON is kept so responses return the record exactly as stored.
type DestinationRecord struct {
	CID             CID             `json:"cid"`
	Title           string          `json:"title"`
	Description     *string         `json:"description,omitempty"`
	Address         string          `json:"address"`
	CompleteAddress CompleteAddress `json:"complete_address"`
	Categories      []string        `json:"categories"`
	ReviewCount     json.Number     `json:"review_count"`
	ReviewRating    json.Number     `json:"review_rating"`
	OpenHours       json.RawMessage `json:"open_hours"`
	Latitude        json.Number     `json:"latitude"`
	Longtitude      json.Number     `json:"longtitude"` // dataset key is misspelled

	raw json.RawMessage
}

type destinationAlias DestinationRecord

func (d *DestinationRecord) UnmarshalJSON(b []byte) error {
	var a destinationAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = DestinationRecord(a)
	d.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (d DestinationRecord) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	return json.Marshal(destinationAlias(d))
}

// MissingFields lists required keys that are absent or empty.
func (d DestinationRecord) MissingFields() []string {
	var missing []string
	check := func(ok bool, key string) {
		if !ok {
			missing = append(missing, key)
		}
	}
	check(d.CID != "", "cid")
	check(d.Title != "", "title")
	check(d.Address != "", "address")
	check(d.CompleteAddress.Country != "", "complete_address.country")
	check(d.ReviewCount != "", "review_count")
	check(d.ReviewRating != "", "review_rating")
	check(hasJSONValue(d.OpenHours), "open_hours")
	check(d.Latitude != "", "latitude")
	check(d.Longtitude != "", "longtitude")
	return missing
}

func hasJSONValue(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (d DestinationRecord) Country() string {
	return string(d.CompleteAddress.Country)
}

// DocumentMetadata is the payload stored next to each embedding.
type DocumentMetadata struct {
	ID              CID             `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Address         string          `json:"address"`
	CompleteAddress CompleteAddress `json:"complete_address"`
}

// IndexedDocument is the text and metadata derived from one DestinationRecord.
type IndexedDocument struct {
	ID       CID
	Text     string
	Metadata DocumentMetadata
}
