// Package directory finds doctors by specialty, name or city and maps
// symptom descriptions to a specialty.
package directory

import (
	"context"
	"strings"

	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// DefaultPageSize caps how many doctors a search returns.
const DefaultPageSize = 5

type doctorSearcher interface {
	Search(ctx context.Context, q doctors.Query) ([]*doctors.Doctor, error)
}

// Directory is the read side of the doctor store used by search.
type Directory struct {
	store    doctorSearcher
	mapper   *SymptomMapper
	pageSize int
	logger   *logging.Logger
}

func New(store doctorSearcher, mapper *SymptomMapper, logger *logging.Logger) *Directory {
	if mapper == nil {
		mapper = NewSymptomMapper(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{store: store, mapper: mapper, pageSize: DefaultPageSize, logger: logger}
}

func (d *Directory) WithPageSize(n int) *Directory {
	if n > 0 {
		d.pageSize = n
	}
	return d
}

func (d *Directory) Mapper() *SymptomMapper {
	return d.mapper
}

// Search returns at most one page of doctor summaries in store order.
func (d *Directory) Search(ctx context.Context, q doctors.Query) ([]doctors.Summary, error) {
	q.Specialty = strings.TrimSpace(q.Specialty)
	q.Name = strings.TrimSpace(q.Name)
	q.City = strings.TrimSpace(q.City)
	if q.Limit <= 0 || q.Limit > d.pageSize {
		q.Limit = d.pageSize
	}
	found, err := d.store.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]doctors.Summary, 0, len(found))
	for _, doc := range found {
		out = append(out, doc.Summary())
	}
	d.logger.Debug("doctor search", "specialty", q.Specialty, "name", q.Name, "city", q.City, "results", len(out))
	return out, nil
}

// SearchBySymptoms maps text to a specialty and searches it. ok is false when
// no keyword matched.
func (d *Directory) SearchBySymptoms(ctx context.Context, text string) (specialty string, results []doctors.Summary, ok bool, err error) {
	specialty, ok = d.mapper.Lookup(text)
	if !ok {
		return "", nil, false, nil
	}
	results, err = d.Search(ctx, doctors.Query{Specialty: specialty})
	return specialty, results, true, err
}
