package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// DefaultRemoteTimeout bounds a single semantic-mapping request.
const DefaultRemoteTimeout = 30 * time.Second

// Suggester is a semantic-mapping service. Implementations live in the
// semantic package.
type Suggester interface {
	// Configured reports whether the service has the credentials or endpoint
	// it needs. An unconfigured suggester is never called.
	Configured() bool

	// Suggest returns catalog field -> source header suggestions. The result
	// may be partial and may name headers that do not exist.
	Suggest(ctx context.Context, headers []string, fields []string) (map[string]string, error)
}

// Source records which path produced a mapping.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Result is the outcome of Mapper.Map.
type Result struct {
	Mapping FieldMapping
	Source  Source

	// Fallback is set when a configured service failed and the local
	// auto-mapping was used instead. It is an ExternalServiceFailure.
	Fallback error
}

// Mapper combines AutoMap with an optional remote suggester.
type Mapper struct {
	suggester Suggester
	timeout   time.Duration
}

// NewMapper returns a Mapper. A nil suggester always maps locally; a
// non-positive timeout uses DefaultRemoteTimeout.
func NewMapper(s Suggester, timeout time.Duration) *Mapper {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Mapper{suggester: s, timeout: timeout}
}

// Remote reports whether Map will attempt the remote service.
func (m *Mapper) Remote() bool {
	return m != nil && m.suggester != nil && m.suggester.Configured()
}

// Map returns a complete catalog mapping for headers.
//
// When a suggester is configured it is called once under the mapper's
// timeout. Its suggestions are merged over AutoMap: a suggestion is kept only
// if it names one of headers, and fields it leaves empty keep the AutoMap
// value. Any service error falls back to AutoMap; Map itself never fails.
func (m *Mapper) Map(ctx context.Context, headers types.Headers) Result {
	local := AutoMapCatalog(headers)
	if !m.Remote() {
		return Result{Mapping: local, Source: SourceLocal}
	}

	log := logging.FromContext(ctx)

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	suggested, err := m.suggester.Suggest(callCtx, headers, Fields())
	if err == nil && len(suggested) == 0 {
		err = errors.New("empty suggestion")
	}
	if err != nil {
		wrapped := apperrors.External("semantic mapping", fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err))
		log.Warn("semantic mapping failed, using auto-map", "error", err)
		return Result{Mapping: local, Source: SourceLocal, Fallback: wrapped}
	}

	merged, accepted := Merge(local, suggested, headers)
	log.Debug("semantic mapping merged", "accepted", accepted, "suggested", len(suggested))
	return Result{Mapping: merged, Source: SourceRemote}
}

// Merge overlays suggestions on base. Suggestions for unknown fields, empty
// suggestions and suggestions naming headers outside the set are ignored.
// It returns the merged mapping and the number of suggestions accepted.
func Merge(base FieldMapping, suggested map[string]string, headers types.Headers) (FieldMapping, int) {
	out := base.Complete()
	accepted := 0
	for field, header := range suggested {
		if !IsField(field) || header == "" || !headers.Contains(header) {
			continue
		}
		out[field] = header
		accepted++
	}
	return out, accepted
}
