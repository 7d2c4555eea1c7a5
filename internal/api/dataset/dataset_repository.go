package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository resolves destination ids against the dataset file.
type Repository interface {
	All(ctx context.Context) ([]types.DestinationRecord, error)
	FindByID(ctx context.Context, id types.CID) (*types.DestinationRecord, error)
	FindByIDs(ctx context.Context, ids []types.CID) ([]types.DestinationRecord, error)
	FindByMetadataList(ctx context.Context, items []map[string]any) ([]types.DestinationRecord, error)
}

type snapshot struct {
	modTime time.Time
	size    int64
	records []types.DestinationRecord
	index   map[types.CID]int
}

// RepositoryImpl reads the dataset through a cache that is dropped whenever
// the file's modification time or size changes.
type RepositoryImpl struct {
	logger *slog.Logger
	path   string
	cache  *cache.Cache
	group  singleflight.Group
}

// NewRepository builds a file backed repository. A ttl of zero keeps the
// snapshot until the file changes.
func NewRepository(path string, ttl time.Duration, logger *slog.Logger) *RepositoryImpl {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &RepositoryImpl{
		logger: logger,
		path:   path,
		cache:  cache.New(ttl, 10*time.Minute),
	}
}

func (r *RepositoryImpl) load(ctx context.Context) (*snapshot, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}

	if cached, ok := r.cache.Get(r.path); ok {
		snap := cached.(*snapshot)
		if snap.modTime.Equal(info.ModTime()) && snap.size == info.Size() {
			return snap, nil
		}
	}

	v, err, _ := r.group.Do(r.path, func() (interface{}, error) {
		return r.read(ctx, info)
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (r *RepositoryImpl) read(ctx context.Context, info os.FileInfo) (*snapshot, error) {
	l := r.logger.With(slog.String("method", "read"), slog.String("path", r.path))

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	defer f.Close()

	var records []types.DestinationRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		l.ErrorContext(ctx, "Failed to decode dataset", slog.Any("error", err))
		return nil, fmt.Errorf("%w: decoding %s: %v", types.ErrDataUnavailable, r.path, err)
	}

	index := make(map[types.CID]int, len(records))
	for i, rec := range records {
		if _, dup := index[rec.CID]; !dup {
			index[rec.CID] = i
		}
	}

	snap := &snapshot{
		modTime: info.ModTime(),
		size:    info.Size(),
		records: records,
		index:   index,
	}
	r.cache.SetDefault(r.path, snap)
	l.InfoContext(ctx, "Dataset loaded", slog.Int("records", len(records)))
	return snap, nil
}

func (r *RepositoryImpl) All(ctx context.Context) ([]types.DestinationRecord, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.DestinationRecord, len(snap.records))
	copy(out, snap.records)
	return out, nil
}

// FindByID returns nil without error when id is unknown.
func (r *RepositoryImpl) FindByID(ctx context.Context, id types.CID) (*types.DestinationRecord, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := snap.index[id]
	if !ok {
		return nil, nil
	}
	rec := snap.records[i]
	return &rec, nil
}

// FindByIDs returns the matching records in dataset order. Unknown and
// repeated ids are ignored.
func (r *RepositoryImpl) FindByIDs(ctx context.Context, ids []types.CID) ([]types.DestinationRecord, error) {
	ctx, span := otel.Tracer("DatasetRepository").Start(ctx, "FindByIDs", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	snap, err := r.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset unavailable")
		return nil, err
	}

	positions := make([]bool, len(snap.records))
	for _, id := range ids {
		if i, ok := snap.index[id]; ok {
			positions[i] = true
		}
	}

	out := make([]types.DestinationRecord, 0, len(ids))
	for i, hit := range positions {
		if hit {
			out = append(out, snap.records[i])
		}
	}
	span.SetAttributes(attribute.Int("records.count", len(out)))
	span.SetStatus(codes.Ok, "records resolved")
	return out, nil
}

// FindByMetadataList resolves items that carry an "id" key. Callers holding
// numeric ids should decode with json.Decoder.UseNumber: a float64 id above
// 2^53 has lost digits and is skipped.
func (r *RepositoryImpl) FindByMetadataList(ctx context.Context, items []map[string]any) ([]types.DestinationRecord, error) {
	ids := make([]types.CID, 0, len(items))
	for _, item := range items {
		raw, present := item["id"]
		id, ok := metadataID(raw)
		if !ok {
			if present {
				r.logger.WarnContext(ctx, "Skipping metadata item with unusable id", slog.Any("id", raw))
			}
			continue
		}
		ids = append(ids, id)
	}
	return r.FindByIDs(ctx, ids)
}

// maxExactFloatID is the largest integer a float64 holds without rounding.
const maxExactFloatID = 1 << 53

func metadataID(v any) (types.CID, bool) {
	switch id := v.(type) {
	case string:
		return types.CID(id), id != ""
	case types.CID:
		return id, id != ""
	case json.Number:
		return types.CID(id.String()), true
	case float64:
		if id != math.Trunc(id) || math.Abs(id) > maxExactFloatID {
			return "", false
		}
		return types.CID(strconv.FormatInt(int64(id), 10)), true
	case int:
		return types.CID(strconv.Itoa(id)), true
	case int64:
		return types.CID(strconv.FormatInt(id, 10)), true
	default:
		return "", false
	}
}
