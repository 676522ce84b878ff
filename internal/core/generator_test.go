package core

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/idna"

	"github.com/x-stp/rxglyph/internal/confusables"
	"github.com/x-stp/rxglyph/internal/idnacheck"
)

func mustTable(t *testing.T, entries map[rune][]rune) *confusables.Table {
	t.Helper()
	tbl, err := confusables.New(entries)
	if err != nil {
		t.Fatalf("confusables.New: %v", err)
	}
	return tbl
}

func TestCombinations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n, k int
		want [][]int
	}{
		{"4 choose 2", 4, 2, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}},
		{"3 choose 1", 3, 1, [][]int{{0}, {1}, {2}}},
		{"3 choose 3", 3, 3, [][]int{{0, 1, 2}}},
		{"k greater than n", 2, 3, nil},
		{"k zero", 3, 0, nil},
		{"n zero", 0, 1, nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got [][]int
			for c := range Combinations(tc.n, tc.k) {
				got = append(got, slices.Clone(c))
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Combinations(%d, %d) = %v, want %v", tc.n, tc.k, got, tc.want)
			}
		})
	}
}

func TestCombinationsStopsEarly(t *testing.T) {
	t.Parallel()
	count := 0
	for range Combinations(10, 3) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected iteration to stop after 2, got %d", count)
	}
}

func TestCandidatesOrder(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'a': {'x', 'y'}, 'b': {'z'}}), nil)

	var got []string
	for c := range g.Candidates("ab", 2) {
		got = append(got, c)
	}
	want := []string{"xb", "yb", "az", "xz", "yz"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Candidates = %v, want %v", got, want)
	}
}

func TestCandidatesYieldsLabelForPositionsWithoutSubstitutes(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'a': {'x'}}), nil)

	var got []string
	for c := range g.Candidates("ab", 1) {
		got = append(got, c)
	}
	want := []string{"xb", "ab"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Candidates = %v, want %v", got, want)
	}
}

func TestCandidatesUsesCodePointPositions(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'a': {'x'}}), nil)

	var got []string
	for c := range g.Candidates("äa", 1) {
		got = append(got, c)
	}
	want := []string{"äa", "äx"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Candidates = %q, want %q", got, want)
	}
}

func TestGenerateExcludesLabelAndRespectsCap(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'a': {'x', 'y'}, 'b': {'z'}}), nil)

	full := g.Generate("ab", 2, 100)
	if full.Len() != 5 || full.Truncated {
		t.Fatalf("expected 5 untruncated variants, got %d truncated=%v", full.Len(), full.Truncated)
	}
	if full.Contains("ab") {
		t.Fatalf("variant set must not contain the original label")
	}
	if got, want := full.Sorted(), []string{"az", "xb", "xz", "yb", "yz"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Sorted = %v, want %v", got, want)
	}

	capped := g.Generate("ab", 2, 2)
	if capped.Len() != 2 || !capped.Truncated {
		t.Fatalf("expected 2 truncated variants, got %d truncated=%v", capped.Len(), capped.Truncated)
	}
	if !capped.Contains("xb") || !capped.Contains("yb") {
		t.Fatalf("cap should keep the earliest candidates, got %v", capped.Sorted())
	}
}

func TestGenerateNonPositiveArgs(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil, nil)
	for _, tc := range []struct{ edits, limit int }{{0, 10}, {1, 0}, {-1, -1}} {
		if vs := g.Generate("paypal", tc.edits, tc.limit); vs.Len() != 0 || vs.Attempted != 0 {
			t.Fatalf("Generate(edits=%d, limit=%d) = %d variants, want none", tc.edits, tc.limit, vs.Len())
		}
	}
}

func TestGenerateCountsRejections(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'x': {'X', 'Ⅹ'}}), nil)

	vs := g.Generate("xx", 2, 10)
	if vs.Len() != 0 {
		t.Fatalf("expected no valid variants, got %v", vs.Sorted())
	}
	if vs.Attempted != 8 || vs.Rejected != 8 {
		t.Fatalf("attempted=%d rejected=%d, want 8/8", vs.Attempted, vs.Rejected)
	}
	if vs.Truncated {
		t.Fatalf("exhausted search must not be reported as truncated")
	}
}

func TestAssemblePaypalContainsCyrillicA(t *testing.T) {
	t.Parallel()
	res := NewGenerator(nil, nil).Assemble("paypal.com", 1, 2000)

	const want = "pаypal.com"
	var found *DomainPair
	for i := range res.Pairs {
		if res.Pairs[i].Display == want {
			found = &res.Pairs[i]
		}
	}
	if found == nil {
		t.Fatalf("expected %q among %d pairs", want, len(res.Pairs))
	}
	if !strings.HasPrefix(found.ASCII, "xn--") || !strings.HasSuffix(found.ASCII, ".com") {
		t.Fatalf("unexpected ASCII form %q", found.ASCII)
	}
	if res.Truncated {
		t.Fatalf("single edit of paypal should not hit a cap of 2000")
	}
}

func TestAssembleLimitOne(t *testing.T) {
	t.Parallel()
	res := NewGenerator(nil, nil).Assemble("ab.com", 1, 1)
	if len(res.Pairs) != 1 {
		t.Fatalf("expected exactly one pair, got %v", res.Pairs)
	}
	if !res.Truncated {
		t.Fatalf("expected Truncated when the cap is reached")
	}
	if !strings.HasSuffix(res.Pairs[0].Display, ".com") {
		t.Fatalf("suffix lost: %q", res.Pairs[0].Display)
	}
}

func TestAssembleUnencodableSubstitutesYieldNothing(t *testing.T) {
	t.Parallel()
	g := NewGenerator(mustTable(t, map[rune][]rune{'x': {'X', 'Ⅹ'}}), nil)
	res := g.Assemble("xx.com", 2, 100)
	if len(res.Pairs) != 0 {
		t.Fatalf("expected empty result, got %v", res.Pairs)
	}
}

func TestAssembleNormalizesInput(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil, nil)
	a := g.Assemble("  Example.COM. ", 1, 2000)
	b := g.Assemble("example.com", 1, 2000)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalized inputs differ:\n%+v\n%+v", a, b)
	}
	if a.Label != "example" || a.Suffix != "com" {
		t.Fatalf("split = %q/%q", a.Label, a.Suffix)
	}
}

func TestAssembleProperties(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil, nil)

	for _, domain := range []string{"paypal.com", "google.co.uk", "apple", "bank-0.io"} {
		domain := domain
		t.Run(domain, func(t *testing.T) {
			t.Parallel()
			for _, limit := range []int{1, 7, 2000} {
				res := g.Assemble(domain, 2, limit)
				if len(res.Pairs) > limit {
					t.Fatalf("limit %d exceeded: %d pairs", limit, len(res.Pairs))
				}
				if !slices.IsSortedFunc(res.Pairs, func(a, b DomainPair) int { return strings.Compare(a.Display, b.Display) }) {
					t.Fatalf("pairs not sorted")
				}
				for _, p := range res.Pairs {
					if p.Display == res.Domain {
						t.Fatalf("original domain emitted")
					}
					if res.Suffix != "" && !strings.HasSuffix(p.Display, "."+res.Suffix) {
						t.Fatalf("suffix not preserved: %q", p.Display)
					}
					back, err := idna.ToUnicode(p.ASCII)
					if err != nil || back != p.Display {
						t.Fatalf("round trip %q -> %q -> %q (%v)", p.Display, p.ASCII, back, err)
					}
				}
			}
		})
	}
}

func TestAssembleEditMonotonicity(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil, nil)
	one := g.Assemble("paypal.com", 1, 1_000_000)
	two := g.Assemble("paypal.com", 2, 1_000_000)

	seen := make(map[string]bool, len(two.Pairs))
	for _, p := range two.Pairs {
		seen[p.Display] = true
	}
	for _, p := range one.Pairs {
		if !seen[p.Display] {
			t.Fatalf("%q present with one edit but missing with two", p.Display)
		}
	}
	if len(two.Pairs) <= len(one.Pairs) {
		t.Fatalf("expected more variants with two edits: %d vs %d", len(two.Pairs), len(one.Pairs))
	}
}

func TestAssembleDeterministicAndConcurrent(t *testing.T) {
	t.Parallel()
	g := NewGenerator(nil, nil)
	want := g.Assemble("microsoft.com", 1, 2000)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Assemble("microsoft.com", 1, 2000)
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d differs from reference", i)
		}
	}
}

func TestAssembleAllowNonLDH(t *testing.T) {
	t.Parallel()
	strict := NewGenerator(nil, nil).Assemble("pal.com", 1, 2000)
	lenient := NewGenerator(nil, idnacheck.New(idnacheck.AllowNonLDH())).Assemble("pal.com", 1, 2000)

	has := func(r Result, d string) bool {
		return slices.ContainsFunc(r.Pairs, func(p DomainPair) bool { return p.Display == d })
	}
	if has(strict, "pa|.com") {
		t.Fatalf("strict validator accepted a non-LDH label")
	}
	if !has(lenient, "pa|.com") {
		t.Fatalf("lenient validator rejected pa|.com")
	}
}

func TestNormalizeAndSplit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, norm, label, suffix string
	}{
		{"Example.COM.", "example.com", "example", "com"},
		{"..a.b.c..", "a.b.c", "a", "b.c"},
		{"  paypal ", "paypal", "paypal", ""},
		{"", "", "", ""},
	}
	for _, tc := range tests {
		norm := NormalizeDomain(tc.in)
		if norm != tc.norm {
			t.Fatalf("NormalizeDomain(%q) = %q, want %q", tc.in, norm, tc.norm)
		}
		label, suffix := SplitDomain(norm)
		if label != tc.label || suffix != tc.suffix {
			t.Fatalf("SplitDomain(%q) = %q, %q", norm, label, suffix)
		}
	}
}
