// Package source reads raw listings from the places the crawler leaves
// them: JSON Lines files, standard input and S3-compatible object storage.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/domain/listing"
)

// maxLineSize bounds one JSON line. Listings with long attribute tables run
// to a few kilobytes; anything past this is not a listing.
const maxLineSize = 1 << 20

// Source is one named stream of JSON Lines.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Decoder turns JSON Lines into validated listings. Malformed or invalid
// lines are logged and skipped.
type Decoder struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewDecoder creates a Decoder. Validation errors name fields by their JSON
// key.
func NewDecoder(logger *zap.Logger) *Decoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Decoder{validate: v, logger: logger}
}

// DecodeStats counts what one stream produced.
type DecodeStats struct {
	Lines    int
	Listings int
	Skipped  int
}

// Decode reads r line by line and calls emit for every valid listing. It
// stops at the first emit error, a read error or ctx cancellation.
func (d *Decoder) Decode(ctx context.Context, name string, r io.Reader, emit func(listing.RawListing) error) (DecodeStats, error) {
	var stats DecodeStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		item, err := d.parse(line)
		if err != nil {
			stats.Skipped++
			d.logger.Warn("Skipping invalid listing line",
				zap.String("source", name),
				zap.Int("line", stats.Lines),
				zap.Error(err),
			)
			continue
		}
		if err := emit(item); err != nil {
			return stats, err
		}
		stats.Listings++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", name, err)
	}
	return stats, nil
}

func (d *Decoder) parse(line string) (listing.RawListing, error) {
	var item listing.RawListing
	if err := json.Unmarshal([]byte(line), &item); err != nil {
		return item, fmt.Errorf("decode: %w", err)
	}
	if err := d.validate.Struct(&item); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field() + " (" + fe.Tag() + ")"
			}
			return item, fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return item, err
	}
	return item, nil
}
