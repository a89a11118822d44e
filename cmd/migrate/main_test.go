package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error                    { return f.upErr }
func (f *fakeMigrator) Steps(n int) error            { f.steps = append(f.steps, n); return nil }
func (f *fakeMigrator) Force(v int) error            { f.forced = v; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, f.verErr }

func TestRunUpIgnoresNoChange(t *testing.T) {
	if err := run(&fakeMigrator{upErr: migrate.ErrNoChange}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := run(&fakeMigrator{upErr: errors.New("boom")}, []string{"up"}); err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestRunDownRollsBackSteps(t *testing.T) {
	f := &fakeMigrator{}
	if err := run(f, []string{"down", "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.steps) != 1 || f.steps[0] != -2 {
		t.Fatalf("expected Steps(-2), got %v", f.steps)
	}
	if err := run(f, []string{"down"}); err == nil {
		t.Fatalf("expected missing count error")
	}
}

func TestRunForceAndVersion(t *testing.T) {
	f := &fakeMigrator{version: 3}
	if err := run(f, []string{"force", "3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.forced != 3 {
		t.Fatalf("expected forced version 3, got %d", f.forced)
	}
	if err := run(f, []string{"version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := run(&fakeMigrator{verErr: migrate.ErrNilVersion}, []string{"version"}); err != nil {
		t.Fatalf("nil version should not be an error: %v", err)
	}
	if err := run(f, []string{"sideways"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}
