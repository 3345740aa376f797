package registry

import (
	"context"
	"fmt"
	"testing"

	"srcreg/internal/locator"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func records(pairs ...string) []Record {
	out := make([]Record, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Record{Row: len(out) + 1, SourceType: pairs[i], Locator: pairs[i+1]})
	}
	return out
}

func TestClassify_Scenarios(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	in := records(
		"code", "src/app.py:42",
		"code", `src\app.py:42`,
		"figma", "https://www.figma.com/design/ABC123/My-File?node-id=10-20",
		"notion", "https://notion.so/Page-abcdef1234567890abcdef1234567890#section-2",
		"other", "  Shared Drawing v2 ",
		"other", "shared drawing v2",
		"xml", "some-locator",
		"code", "://not-a-path",
	)

	got, err := e.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("len(result) = %d, want %d", len(got), len(in))
	}

	want := []struct {
		status      Status
		key         string
		duplicateOf int
		code        locator.ReasonCode
	}{
		{StatusValid, "code:src/app.py:42", 0, ""},
		{StatusDuplicate, "code:src/app.py:42", 1, ""},
		{StatusValid, "figma:ABC123:10:20", 0, ""},
		{StatusValid, "notion:abcdef1234567890abcdef1234567890:section-2", 0, ""},
		{StatusValid, got[4].Canonical.Key, 0, ""},
		{StatusDuplicate, got[4].Canonical.Key, 5, ""},
		{StatusInvalid, "", 0, locator.ReasonUnsupportedType},
		{StatusInvalid, "", 0, locator.ReasonNotCodeLocator},
	}

	for i, w := range want {
		g := got[i]
		if g.Status != w.status {
			t.Errorf("row %d: Status = %s, want %s", i+1, g.Status, w.status)
		}
		if g.Canonical.Key != w.key {
			t.Errorf("row %d: Key = %q, want %q", i+1, g.Canonical.Key, w.key)
		}
		if g.DuplicateOf != w.duplicateOf {
			t.Errorf("row %d: DuplicateOf = %d, want %d", i+1, g.DuplicateOf, w.duplicateOf)
		}
		if g.InvalidCode != w.code {
			t.Errorf("row %d: InvalidCode = %s, want %s", i+1, g.InvalidCode, w.code)
		}
		if g.Record.Row != i+1 {
			t.Errorf("row %d: Record.Row = %d", i+1, g.Record.Row)
		}
	}

	if got[6].InvalidReason != "unsupported source_type: xml" {
		t.Errorf("InvalidReason = %q", got[6].InvalidReason)
	}
	if got[1].Canonical.Normalized != "src/app.py:42" {
		t.Errorf("duplicate keeps its canonical fields, got %+v", got[1].Canonical)
	}
}

func TestClassify_FirstWins(t *testing.T) {
	e := newTestEngine(t, Options{Workers: 1})
	in := records(
		"doc", "https://example.com/a?x=1&y=2",
		"doc", "xml-not-a-url",
		"doc", "https://EXAMPLE.com/a?y=2&x=1",
		"api", "https://example.com/a?y=2&x=1#frag",
	)

	got, err := e.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if got[0].Status != StatusValid {
		t.Fatalf("first record Status = %s, want valid", got[0].Status)
	}
	if got[1].Status != StatusInvalid {
		t.Errorf("second record Status = %s, want invalid", got[1].Status)
	}
	for _, i := range []int{2, 3} {
		if got[i].Status != StatusDuplicate || got[i].DuplicateOf != 1 {
			t.Errorf("record %d = (%s, dup of %d), want duplicate of 1", i+1, got[i].Status, got[i].DuplicateOf)
		}
	}
}

func TestClassify_UsesRecordRows(t *testing.T) {
	e := newTestEngine(t, Options{})
	in := []Record{
		{Row: 10, SourceType: "other", Locator: "alpha"},
		{Row: 11, SourceType: "other", Locator: "ALPHA"},
		{SourceType: "other", Locator: "alpha "},
	}

	got, err := e.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got[1].DuplicateOf != 10 {
		t.Errorf("DuplicateOf = %d, want 10", got[1].DuplicateOf)
	}
	if got[2].Record.Row != 3 {
		t.Errorf("missing row defaulted to %d, want 3", got[2].Record.Row)
	}
	if got[2].DuplicateOf != 10 {
		t.Errorf("DuplicateOf = %d, want 10", got[2].DuplicateOf)
	}
}

func syntheticRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		var typ, loc string
		switch i % 5 {
		case 0:
			typ, loc = "code", fmt.Sprintf("pkg/file%d.go:%d", i%17, i%3)
		case 1:
			typ, loc = "figma", fmt.Sprintf("https://www.figma.com/design/F%d/x?node-id=%d-%d", i%7, i%4, i%2)
		case 2:
			typ, loc = "doc", fmt.Sprintf("https://docs.example.com/p%d?b=%d&a=%d", i%11, i%2, i%3)
		case 3:
			typ, loc = "other", fmt.Sprintf("Note %d", i%13)
		default:
			typ, loc = "bogus", "x"
		}
		out[i] = Record{Row: i + 1, SourceType: typ, Locator: loc}
	}
	return out
}

func TestClassify_ParallelMatchesSequential(t *testing.T) {
	in := syntheticRecords(997)

	seq, err := newTestEngine(t, Options{Workers: 1}).Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("sequential Classify() error = %v", err)
	}

	for _, workers := range []int{2, 3, 8, 64} {
		par, err := newTestEngine(t, Options{Workers: workers, CacheSize: 16}).Classify(context.Background(), in)
		if err != nil {
			t.Fatalf("parallel(%d) Classify() error = %v", workers, err)
		}
		for i := range seq {
			if seq[i] != par[i] {
				t.Fatalf("workers=%d row %d differs:\nseq=%+v\npar=%+v", workers, i+1, seq[i], par[i])
			}
		}
	}
}

func TestClassify_Invariants(t *testing.T) {
	in := syntheticRecords(500)
	got, err := newTestEngine(t, Options{Workers: 4, CacheSize: 64}).Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	s := Summarize(got)
	if s.Valid+s.Duplicate+s.Invalid != s.Total || s.Total != len(in) {
		t.Errorf("totals do not add up: %+v", s)
	}

	validKeys := make(map[string]int)
	firstRow := make(map[string]int)
	for _, r := range got {
		switch r.Status {
		case StatusValid:
			if prev, dup := validKeys[r.Canonical.Key]; dup {
				t.Errorf("key %q valid on rows %d and %d", r.Canonical.Key, prev, r.Record.Row)
			}
			validKeys[r.Canonical.Key] = r.Record.Row
			firstRow[r.Canonical.Key] = r.Record.Row
		case StatusDuplicate:
			first, ok := firstRow[r.Canonical.Key]
			if !ok {
				t.Errorf("row %d duplicate precedes its valid record", r.Record.Row)
				continue
			}
			if r.DuplicateOf != first {
				t.Errorf("row %d DuplicateOf = %d, want %d", r.Record.Row, r.DuplicateOf, first)
			}
		case StatusInvalid:
			if r.Canonical.Key != "" || r.InvalidReason == "" || r.InvalidCode == "" {
				t.Errorf("row %d invalid record malformed: %+v", r.Record.Row, r)
			}
		default:
			t.Errorf("row %d has unknown status %q", r.Record.Row, r.Status)
		}
	}
}

func TestClassify_IndependentRuns(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	in := records("other", "same")

	for run := 0; run < 2; run++ {
		got, err := e.Classify(context.Background(), in)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got[0].Status != StatusValid {
			t.Errorf("run %d: Status = %s, want valid", run, got[0].Status)
		}
	}
}

func TestClassify_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		_, err := newTestEngine(t, Options{Workers: workers}).Classify(ctx, syntheticRecords(20))
		if err == nil {
			t.Errorf("workers=%d: expected cancellation error", workers)
		}
	}
}

func TestClassify_Empty(t *testing.T) {
	got, err := newTestEngine(t, DefaultOptions()).Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if s := Summarize(got); s.Total != 0 || len(s.SupportedTypes) != 6 {
		t.Errorf("Summarize(empty) = %+v", s)
	}
}

func TestNewEngine_InvalidOptions(t *testing.T) {
	if _, err := NewEngine(Options{Workers: -1}, nil); err == nil {
		t.Error("expected error for negative workers")
	}
	if _, err := NewEngine(Options{CacheSize: -1}, nil); err == nil {
		t.Error("expected error for negative cache size")
	}
}
