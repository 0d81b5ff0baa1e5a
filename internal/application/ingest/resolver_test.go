package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecordLookup struct {
	mock.Mock
}

func (m *MockRecordLookup) Lookup(ctx context.Context, code string) (*listing.ProductRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.ProductRecord), args.Error(1)
}

func laptopSpecs(ram string) listing.Specs {
	return listing.ExtractSpecs(map[string]string{
		"Processor Model":          "Intel Core i7",
		"Graphics":                 "Intel Iris Xe",
		"System Memory (RAM)":      ram,
		"Total Storage Capacity":   "512 gigabytes",
		"Screen Size":              "15.6 inches",
		"Operating System":         "Windows 11 Home",
		"Number of Ethernet Ports": "1",
	})
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a record for an unknown code", func(t *testing.T) {
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(nil, shared.ErrNotFound)
		r := NewResolver(lookup, nil)

		res, err := r.Resolve(ctx, "111", laptopSpecs("8 gigabytes"))
		require.NoError(t, err)
		assert.True(t, res.IsNew)
		assert.False(t, res.Dirty)
		assert.True(t, res.NeedsWrite())
		require.NotNil(t, res.Record)
		assert.Equal(t, "111", res.Record.ProductCode)
		assert.Equal(t, 8.0, res.Record.Spec(listing.FieldSystemMemoryGB).Number)
		lookup.AssertExpectations(t)
	})

	t.Run("leaves a known record untouched when monitored fields match", func(t *testing.T) {
		stored := listing.NewProductRecord("111", laptopSpecs("8 gigabytes"))
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(stored, nil)
		r := NewResolver(lookup, nil)

		observed := laptopSpecs("8 gigabytes")
		observed[listing.FieldOperatingSystem] = listing.StringValue("Windows 11 Pro")
		res, err := r.Resolve(ctx, "111", observed)
		require.NoError(t, err)
		assert.False(t, res.IsNew)
		assert.False(t, res.Dirty)
		assert.Empty(t, res.Drifts)
		assert.False(t, res.NeedsWrite())
		assert.Equal(t, "Windows 11 Home", res.Record.Spec(listing.FieldOperatingSystem).Text)
	})

	t.Run("overwrites a record whose memory changed", func(t *testing.T) {
		stored := listing.NewProductRecord("111", laptopSpecs("8 gigabytes"))
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(stored, nil)
		r := NewResolver(lookup, nil)

		res, err := r.Resolve(ctx, "111", laptopSpecs("16 gigabytes"))
		require.NoError(t, err)
		assert.True(t, res.Dirty)
		require.Len(t, res.Drifts, 1)
		assert.Equal(t, "RAM mismatch: DB=8 GB, New=16 GB", res.Drifts[0].String())
		assert.Equal(t, 16.0, res.Record.Spec(listing.FieldSystemMemoryGB).Number)
		assert.Same(t, stored, res.Record)
	})

	t.Run("ignores drift within tolerance", func(t *testing.T) {
		stored := listing.NewProductRecord("111", laptopSpecs("8 gigabytes"))
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(stored, nil)
		r := NewResolver(lookup, nil)

		observed := laptopSpecs("8 gigabytes")
		observed[listing.FieldTotalStorageGB] = listing.NumberValue(512.5)
		res, err := r.Resolve(ctx, "111", observed)
		require.NoError(t, err)
		assert.False(t, res.Dirty)
	})

	t.Run("uses the configured rules", func(t *testing.T) {
		stored := listing.NewProductRecord("111", laptopSpecs("8 gigabytes"))
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(stored, nil)
		r := NewResolver(lookup, []listing.IdentityRule{{Field: listing.FieldOperatingSystem}})

		observed := laptopSpecs("16 gigabytes")
		observed[listing.FieldOperatingSystem] = listing.StringValue("ChromeOS")
		res, err := r.Resolve(ctx, "111", observed)
		require.NoError(t, err)
		require.Len(t, res.Drifts, 1)
		assert.Equal(t, listing.FieldOperatingSystem, res.Drifts[0].Rule.Field)
		assert.Len(t, r.Rules(), 1)
	})

	t.Run("wraps lookup failures", func(t *testing.T) {
		lookup := new(MockRecordLookup)
		lookup.On("Lookup", mock.Anything, "111").Return(nil, errors.New("connection reset"))
		r := NewResolver(lookup, nil)

		_, err := r.Resolve(ctx, "111", laptopSpecs("8 gigabytes"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup product 111")
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("rejects an empty code", func(t *testing.T) {
		lookup := new(MockRecordLookup)
		r := NewResolver(lookup, nil)

		_, err := r.Resolve(ctx, "", laptopSpecs("8 gigabytes"))
		assert.ErrorIs(t, err, ErrMissingProductCode)
		lookup.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	})
}
