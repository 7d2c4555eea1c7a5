package types

// SourceNode is a retrieved document that conditioned the answer.
type SourceNode struct {
	ID       CID              `json:"id"`
	Score    float64          `json:"score"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// Citation is an [id:...] marker found in a generated answer.
type Citation struct {
	Marker string `json:"marker"`
	ID     CID    `json:"id"`
}

// RetrievalResponse is what the vector index gateway returns for both the
// one-shot and the chat mode.
type RetrievalResponse struct {
	Response    string       `json:"response"`
	Citations   []Citation   `json:"citations"`
	SourceNodes []SourceNode `json:"source_nodes"`
}

// ReferencedIDs is the de-duplicated union of citation and source ids,
// citations first in order of appearance.
func (r *RetrievalResponse) ReferencedIDs() []CID {
	if r == nil {
		return nil
	}
	seen := make(map[CID]struct{}, len(r.Citations)+len(r.SourceNodes))
	ids := make([]CID, 0, len(r.Citations)+len(r.SourceNodes))
	add := func(id CID) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, c := range r.Citations {
		add(c.ID)
	}
	for _, n := range r.SourceNodes {
		add(n.ID)
	}
	return ids
}

// IngestReport summarizes one bulk load.
type IngestReport struct {
	RunID     string `json:"run_id"`
	Documents int    `json:"documents"`
	Batches   int    `json:"batches"`
}
