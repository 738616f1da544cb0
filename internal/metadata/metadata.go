// Package metadata resolves the physical attributes (year built, rentable
// square footage) used for derived comparability rankings.
package metadata

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
)

// Provider looks up metadata for one entity. A nil result with a nil error
// means the provider has nothing for it.
type Provider interface {
	Lookup(ctx context.Context, info model.EntityInfo) (*model.EntityMetadata, error)
}

// Static serves metadata supplied with the run input, keyed by entity id.
type Static map[int]model.EntityMetadata

// Lookup implements Provider.
func (s Static) Lookup(_ context.Context, info model.EntityInfo) (*model.EntityMetadata, error) {
	m, ok := s[info.ID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// Chain consults providers in order, filling each missing field from the
// next provider until both are known.
type Chain []Provider

// Lookup implements Provider.
func (c Chain) Lookup(ctx context.Context, info model.EntityInfo) (*model.EntityMetadata, error) {
	var out *model.EntityMetadata
	for _, p := range c {
		if p == nil {
			continue
		}
		m, err := p.Lookup(ctx, info)
		if err != nil {
			return out, err
		}
		if m == nil {
			continue
		}
		if out == nil {
			out = &model.EntityMetadata{}
		}
		if out.YearBuilt == nil {
			out.YearBuilt = m.YearBuilt
		}
		if out.SquareFootage == nil {
			out.SquareFootage = m.SquareFootage
		}
		if out.YearBuilt != nil && out.SquareFootage != nil {
			break
		}
	}
	return out, nil
}

// Resolve looks up every entity. Lookup failures are logged and leave that
// entity without metadata, so derived rankings fall back to defaults.
func Resolve(ctx context.Context, p Provider, infos []model.EntityInfo) map[int]*model.EntityMetadata {
	out := make(map[int]*model.EntityMetadata, len(infos))
	for _, info := range infos {
		if ctx.Err() != nil {
			break
		}
		m, err := p.Lookup(ctx, info)
		if err != nil {
			zap.L().Warn("metadata: lookup failed",
				zap.Int("entity_id", info.ID),
				zap.String("name", info.Name),
				zap.Error(err),
			)
		}
		out[info.ID] = m
	}
	return out
}
