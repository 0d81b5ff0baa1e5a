package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/domain/shared"
)

// ErrMissingProductCode is returned for a listing with neither a product code
// nor a UPC attribute.
var ErrMissingProductCode = errors.New("listing has no product code")

// RecordLookup finds the current record for a product code, including
// records staged but not yet committed. It returns shared.ErrNotFound when
// the code has never been seen.
type RecordLookup interface {
	Lookup(ctx context.Context, code string) (*listing.ProductRecord, error)
}

// Resolver deduplicates observations by product code and detects when a
// known code starts describing different hardware. It only stages
// mutations on the returned record; committing is the writer's job.
type Resolver struct {
	lookup RecordLookup
	rules  []listing.IdentityRule
}

// NewResolver creates a Resolver. A nil rules slice selects
// listing.DefaultIdentityRules.
func NewResolver(lookup RecordLookup, rules []listing.IdentityRule) *Resolver {
	if rules == nil {
		rules = listing.DefaultIdentityRules()
	}
	return &Resolver{lookup: lookup, rules: rules}
}

// Resolve matches specs against the record for code. An unknown code gets a
// new record. A known code whose monitored fields drifted has every spec
// the observation carries copied onto the record, which is marked dirty.
func (r *Resolver) Resolve(ctx context.Context, code string, specs listing.Specs) (listing.Resolution, error) {
	if code == "" {
		return listing.Resolution{}, ErrMissingProductCode
	}

	record, err := r.lookup.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return listing.Resolution{
				Record: listing.NewProductRecord(code, specs),
				IsNew:  true,
			}, nil
		}
		return listing.Resolution{}, fmt.Errorf("lookup product %s: %w", code, err)
	}

	drifts := listing.DetectDrift(record.Specs(), specs, r.rules)
	if len(drifts) == 0 {
		return listing.Resolution{Record: record}, nil
	}

	record.Refresh(specs)
	return listing.Resolution{
		Record: record,
		Dirty:  true,
		Drifts: drifts,
	}, nil
}

// Rules returns the identity rules in use.
func (r *Resolver) Rules() []listing.IdentityRule {
	return r.rules
}
