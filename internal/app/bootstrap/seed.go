package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
)

type doctorRegistrar interface {
	Register(ctx context.Context, d *doctors.Doctor) error
}

// SeedDoctors registers the doctors listed in a JSON array. Existing records
// are left alone by the Postgres store and replaced by the memory store.
func SeedDoctors(ctx context.Context, reg doctorRegistrar, r io.Reader) (int, error) {
	var seed []*doctors.Doctor
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return 0, fmt.Errorf("bootstrap: decode doctor seed: %w", err)
	}
	for i, d := range seed {
		if err := reg.Register(ctx, d); err != nil {
			return i, fmt.Errorf("bootstrap: seed doctor %q: %w", d.ID, err)
		}
	}
	return len(seed), nil
}

// SeedDoctorsFromFile is SeedDoctors over DOCTOR_SEED_FILE; an empty path is
// a no-op.
func SeedDoctorsFromFile(ctx context.Context, reg doctorRegistrar, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: open doctor seed: %w", err)
	}
	defer f.Close()
	return SeedDoctors(ctx, reg, f)
}
