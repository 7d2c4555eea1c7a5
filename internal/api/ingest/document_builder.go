package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

const noDescription = "No description"

// BuildDocument renders the embedding text and metadata for one record.
// The output depends only on the record, so re-ingesting produces identical rows.
func BuildDocument(rec types.DestinationRecord) (types.IndexedDocument, error) {
	if missing := rec.MissingFields(); len(missing) > 0 {
		return types.IndexedDocument{}, fmt.Errorf("%w: cid %q missing %s",
			types.ErrMalformedRecord, rec.CID, strings.Join(missing, ", "))
	}

	openHours, err := compactJSON(rec.OpenHours)
	if err != nil {
		return types.IndexedDocument{}, fmt.Errorf("%w: cid %q open_hours: %v", types.ErrMalformedRecord, rec.CID, err)
	}

	description := noDescription
	if rec.Description != nil && strings.TrimSpace(*rec.Description) != "" {
		description = *rec.Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Address: %s\n", rec.Address)
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	fmt.Fprintf(&b, "Country: %s\n", rec.CompleteAddress.Country)
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(rec.Categories, ", "))
	fmt.Fprintf(&b, "Description: %s\n", description)
	fmt.Fprintf(&b, "Review Count: %s\n", rec.ReviewCount)
	fmt.Fprintf(&b, "Review Rating: %s\n", rec.ReviewRating)
	fmt.Fprintf(&b, "Open Hours: %s\n", openHours)
	fmt.Fprintf(&b, "Latitude: %s\n", rec.Latitude)
	fmt.Fprintf(&b, "Longitude: %s", rec.Longtitude)

	metaDescription := ""
	if rec.Description != nil {
		metaDescription = *rec.Description
	}

	return types.IndexedDocument{
		ID:   rec.CID,
		Text: b.String(),
		Metadata: types.DocumentMetadata{
			ID:              rec.CID,
			Title:           rec.Title,
			Description:     metaDescription,
			Address:         rec.Address,
			CompleteAddress: rec.CompleteAddress,
		},
	}, nil
}

// BuildDocuments fails on the first malformed record so a partial dataset is
// never indexed.
func BuildDocuments(records []types.DestinationRecord) ([]types.IndexedDocument, error) {
	docs := make([]types.IndexedDocument, 0, len(records))
	for i, rec := range records {
		doc, err := BuildDocument(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
