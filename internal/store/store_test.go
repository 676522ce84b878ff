package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/x-stp/rxglyph/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func finding(display, ascii string, resolves bool) core.Finding {
	return core.Finding{Pair: core.DomainPair{Display: display, ASCII: ascii}, Checked: true, Resolves: resolves}
}

func TestSaveAndListScans(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := s.SaveScan(ctx, Scan{Domain: "paypal.com", StartedAt: started, MaxEdits: 1, Limit: 2000, Checked: true}, []core.Finding{
		finding("pаypal.com", "xn--pypal-4ve.com", true),
		finding("paypa1.com", "paypa1.com", false),
	})
	if err != nil {
		t.Fatalf("SaveScan: %v", err)
	}
	if _, err := s.SaveScan(ctx, Scan{Domain: "example.com", MaxEdits: 2, Limit: 10}, nil); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}

	scans, err := s.Scans(ctx, "paypal.com", 10)
	if err != nil {
		t.Fatalf("Scans: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("got %d scans, want 1", len(scans))
	}
	got := scans[0]
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, started)
	}
	got.StartedAt = time.Time{}
	want := Scan{ID: id, Domain: "paypal.com", MaxEdits: 1, Limit: 2000, Checked: true, Variants: 2, Resolving: 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scan = %+v\nwant %+v", got, want)
	}
}

func TestScansNewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveScan(ctx, Scan{Domain: "a.com", MaxEdits: 1, Limit: 1}, nil)
		if err != nil {
			t.Fatalf("SaveScan: %v", err)
		}
		ids = append(ids, id)
	}

	scans, err := s.Scans(ctx, "a.com", 2)
	if err != nil {
		t.Fatalf("Scans: %v", err)
	}
	if len(scans) != 2 || scans[0].ID != ids[2] || scans[1].ID != ids[1] {
		t.Fatalf("unexpected scans %+v", scans)
	}
	all, err := s.Scans(ctx, "a.com", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("Scans(all) = %d, %v", len(all), err)
	}
}

func TestNewlyResolving(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.NewlyResolving(ctx, "paypal.com"); !errors.Is(err, ErrNoScans) {
		t.Fatalf("expected ErrNoScans, got %v", err)
	}

	first := []core.Finding{
		finding("pаypal.com", "xn--pypal-4ve.com", true),
		finding("paypa1.com", "paypa1.com", false),
		finding("pаypаl.com", "xn--pypl-53dc.com", false),
	}
	if _, err := s.SaveScan(ctx, Scan{Domain: "paypal.com", Checked: true}, first); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}
	fresh, err := s.NewlyResolving(ctx, "paypal.com")
	if err != nil {
		t.Fatalf("NewlyResolving: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ASCII != "xn--pypal-4ve.com" {
		t.Fatalf("first scan fresh = %+v", fresh)
	}

	// A scan without DNS results must not become the comparison baseline.
	if _, err := s.SaveScan(ctx, Scan{Domain: "paypal.com"}, nil); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}

	second := []core.Finding{
		finding("pаypal.com", "xn--pypal-4ve.com", true),
		finding("paypa1.com", "paypa1.com", true),
		finding("pаypаl.com", "xn--pypl-53dc.com", false),
		finding("ρaypal.com", "xn--aypal-uye.com", true),
	}
	if _, err := s.SaveScan(ctx, Scan{Domain: "paypal.com", Checked: true}, second); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}
	fresh, err = s.NewlyResolving(ctx, "paypal.com")
	if err != nil {
		t.Fatalf("NewlyResolving: %v", err)
	}
	want := []core.DomainPair{
		{Display: "paypa1.com", ASCII: "paypa1.com"},
		{Display: "ρaypal.com", ASCII: "xn--aypal-uye.com"},
	}
	if !reflect.DeepEqual(fresh, want) {
		t.Fatalf("fresh = %+v, want %+v", fresh, want)
	}
}

func TestSaveScanRejectsDuplicateFindings(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	dup := []core.Finding{finding("a.com", "a.com", true), finding("a.com", "a.com", true)}
	if _, err := s.SaveScan(ctx, Scan{Domain: "a.com", Checked: true}, dup); err == nil {
		t.Fatalf("expected primary key violation")
	}
	scans, err := s.Scans(ctx, "a.com", 0)
	if err != nil {
		t.Fatalf("Scans: %v", err)
	}
	if len(scans) != 0 {
		t.Fatalf("failed transaction must not leave a scan row: %+v", scans)
	}
}
