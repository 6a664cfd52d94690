package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"bidmatch/internal"
	"bidmatch/internal/config"
	"bidmatch/internal/i18n"
	"bidmatch/internal/pricing"
)

type fakeAPI struct {
	mu           sync.Mutex
	extractCalls int
	pricingCalls int
	mapCalls     int
	lastBatch    []internal.ReferenceFile

	extractFn func() (internal.SheetSet, error)
	pricingFn func(files []internal.ReferenceFile) ([]internal.ProviderPricingSheet, error)
	mapFn     func(items []internal.Product) (*internal.MatchResponse, error)
}

func (f *fakeAPI) ExtractItems(_ context.Context, _ string, _ io.Reader) (internal.SheetSet, error) {
	f.mu.Lock()
	f.extractCalls++
	f.mu.Unlock()
	if f.extractFn == nil {
		return internal.SheetSet{Rows: map[string][]internal.Product{}}, nil
	}
	return f.extractFn()
}

func (f *fakeAPI) ExtractProviderPricing(_ context.Context, files []internal.ReferenceFile) ([]internal.ProviderPricingSheet, error) {
	f.mu.Lock()
	f.pricingCalls++
	f.lastBatch = append([]internal.ReferenceFile(nil), files...)
	f.mu.Unlock()
	if f.pricingFn == nil {
		return []internal.ProviderPricingSheet{{SheetName: "S"}}, nil
	}
	return f.pricingFn(files)
}

func (f *fakeAPI) MapItems(_ context.Context, items []internal.Product, _ []internal.ProviderPricingSheet) (*internal.MatchResponse, error) {
	f.mu.Lock()
	f.mapCalls++
	f.mu.Unlock()
	if f.mapFn == nil {
		return &internal.MatchResponse{}, nil
	}
	return f.mapFn(items)
}

type recorder struct {
	mu    sync.Mutex
	notes []string
}

func (r *recorder) Notify(kind, message string) {
	r.mu.Lock()
	r.notes = append(r.notes, kind+": "+message)
	r.mu.Unlock()
}

func (r *recorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func newTestStore(t *testing.T, api *fakeAPI) (*Store, *recorder) {
	t.Helper()
	cfg, _ := config.Load()
	cfg.UploadAllowedExts = []string{".xlsx", ".xls"}
	notes := &recorder{}
	tr := i18n.NewStore(i18n.LangEN, zerolog.Nop())
	return NewStore(cfg, api, tr, notes, nil, zerolog.Nop()), notes
}

func sp(v string) *string { return &v }

func sheetFixture() internal.SheetSet {
	return internal.SheetSet{
		Order: []string{"Sheet1", "Sheet2"},
		Rows: map[string][]internal.Product{
			"Sheet1": {{Name: "Widget"}},
			"Sheet2": {},
		},
	}
}

func TestExtractPopulatesSheetsAndSelectsFirst(t *testing.T) {
	api := &fakeAPI{extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil }}
	s, notes := newTestStore(t, api)

	if err := s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if got := s.SheetNames(); len(got) != 2 || got[0] != "Sheet1" || got[1] != "Sheet2" {
		t.Fatalf("sheets = %v", got)
	}
	if s.SelectedSheet() != "Sheet1" {
		t.Fatalf("selected = %q", s.SelectedSheet())
	}
	rows := s.Products()
	if len(rows) != 1 || rows[0].Name != "Widget" {
		t.Fatalf("rows = %+v", rows)
	}
	if !notes.contains("File processed successfully") {
		t.Fatalf("notes = %v", notes.notes)
	}
}

func TestExtractRejectsBadExtensionWithoutNetworkCall(t *testing.T) {
	api := &fakeAPI{}
	s, notes := newTestStore(t, api)

	err := s.Extract(context.Background(), "quote.docx", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if api.extractCalls != 0 {
		t.Fatalf("network call issued: %d", api.extractCalls)
	}
	if !notes.contains("quote.docx") {
		t.Fatalf("warning must name the file: %v", notes.notes)
	}
}

func TestExtractFailureLeavesPriorStateUntouched(t *testing.T) {
	api := &fakeAPI{extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil }}
	s, _ := newTestStore(t, api)
	if err := s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	api.extractFn = func() (internal.SheetSet, error) {
		return internal.SheetSet{}, fmt.Errorf("connection refused")
	}
	if err := s.Extract(context.Background(), "other.xlsx", strings.NewReader("x")); err == nil {
		t.Fatal("expected error")
	}
	if s.FileName() != "bid.xlsx" || s.SelectedSheet() != "Sheet1" {
		t.Fatalf("prior state clobbered: file=%q sheet=%q", s.FileName(), s.SelectedSheet())
	}
	if s.Flags().IsLoading {
		t.Fatal("loading flag stuck after failure")
	}
}

func TestSelectSheetUnknownYieldsEmptyRows(t *testing.T) {
	api := &fakeAPI{extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil }}
	s, _ := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))

	s.SelectSheet("NoSuchSheet")
	if rows := s.Products(); len(rows) != 0 {
		t.Fatalf("rows = %+v", rows)
	}

	s.SelectSheet("Sheet2")
	if s.SelectedSheet() != "Sheet2" {
		t.Fatalf("selected = %q", s.SelectedSheet())
	}
}

func TestEditThenDeleteComposition(t *testing.T) {
	api := &fakeAPI{extractFn: func() (internal.SheetSet, error) {
		return internal.SheetSet{
			Order: []string{"S"},
			Rows: map[string][]internal.Product{
				"S": {{Name: "A"}, {Name: "B"}, {Name: "C"}},
			},
		}, nil
	}}
	s, _ := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))

	if err := s.EditRow(1, internal.Product{Name: "B2"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRow(1); err != nil {
		t.Fatal(err)
	}
	rows := s.Products()
	if len(rows) != 2 || rows[0].Name != "A" || rows[1].Name != "C" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestEditAndDeleteOutOfRangeAreNoOps(t *testing.T) {
	api := &fakeAPI{extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil }}
	s, _ := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))

	if err := s.EditRow(5, internal.Product{Name: "X"}); err != ErrIndexOutOfRange {
		t.Fatalf("edit err = %v", err)
	}
	if err := s.DeleteRow(-1); err != ErrIndexOutOfRange {
		t.Fatalf("delete err = %v", err)
	}
	if rows := s.Products(); len(rows) != 1 || rows[0].Name != "Widget" {
		t.Fatalf("rows corrupted: %+v", rows)
	}
}

func TestIngestAppendsAcceptedAndWarnsOnRejected(t *testing.T) {
	api := &fakeAPI{}
	s, notes := newTestStore(t, api)

	files := []NamedFile{
		{Name: "a.xlsx", Data: []byte("a")},
		{Name: "b.docx", Data: []byte("b")},
		{Name: "c.xls", Data: []byte("c")},
	}
	if err := s.IngestReferenceFiles(context.Background(), files); err != nil {
		t.Fatal(err)
	}

	refs := s.ReferenceFiles()
	if len(refs) != 2 {
		t.Fatalf("refs = %+v", refs)
	}
	if refs[0].ID == refs[1].ID || refs[0].ID == "" {
		t.Fatalf("ids not unique: %q %q", refs[0].ID, refs[1].ID)
	}
	if !notes.contains("b.docx") {
		t.Fatalf("rejected warning missing: %v", notes.notes)
	}
	if api.pricingCalls != 1 || len(api.lastBatch) != 2 {
		t.Fatalf("pricing calls = %d batch = %d", api.pricingCalls, len(api.lastBatch))
	}
}

func TestIngestNothingAcceptedIssuesNoNetworkCall(t *testing.T) {
	api := &fakeAPI{}
	s, notes := newTestStore(t, api)

	err := s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "readme.md"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if api.pricingCalls != 0 {
		t.Fatal("network call issued with no accepted files")
	}
	if !notes.contains("No Excel files") {
		t.Fatalf("notes = %v", notes.notes)
	}
}

func TestLateIngestCommitDoesNotOverwriteNewerDataset(t *testing.T) {
	firstEntered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{}
	api.pricingFn = func(files []internal.ReferenceFile) ([]internal.ProviderPricingSheet, error) {
		if len(files) == 1 {
			close(firstEntered)
			<-release
			return []internal.ProviderPricingSheet{{SheetName: "A"}}, nil
		}
		return []internal.ProviderPricingSheet{{SheetName: "A"}, {SheetName: "B"}}, nil
	}
	s, _ := newTestStore(t, api)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "a.xlsx"}})
	}()
	<-firstEntered

	// Second ingest sees both retained files and commits a two-sheet dataset
	// while the first call is still waiting on its response.
	if err := s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "b.xlsx"}}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.PricingSheets()); got != 2 {
		t.Fatalf("dataset after second ingest = %d sheets, want 2", got)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatal(err)
	}

	// The first ingest's one-sheet response landed last but belongs to an
	// older batch; it must not shrink the dataset.
	if got := len(s.PricingSheets()); got != 2 {
		t.Fatalf("dataset after late commit = %d sheets, want 2", got)
	}
	if got := len(s.ReferenceFiles()); got != 2 {
		t.Fatalf("reference files = %d, want 2", got)
	}
	if s.Flags().IsProcessingFolder {
		t.Fatal("processing flag stuck after both ingests finished")
	}
}

func TestConcurrentIngestDoesNotLoseFiles(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestStore(t, api)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.IngestReferenceFiles(context.Background(), []NamedFile{
				{Name: fmt.Sprintf("f%d.xlsx", i), Data: []byte("x")},
			})
		}(i)
	}
	wg.Wait()

	if got := len(s.ReferenceFiles()); got != 8 {
		t.Fatalf("reference files = %d, want 8", got)
	}
}

func TestRemoveReferenceFileRemovesExactlyOne(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestStore(t, api)
	_ = s.IngestReferenceFiles(context.Background(), []NamedFile{
		{Name: "a.xlsx"}, {Name: "b.xlsx"}, {Name: "c.xlsx"},
	})

	refs := s.ReferenceFiles()
	if !s.RemoveReferenceFile(refs[1].ID) {
		t.Fatal("expected removal")
	}
	after := s.ReferenceFiles()
	if len(after) != 2 || after[0].ID != refs[0].ID || after[1].ID != refs[2].ID {
		t.Fatalf("after = %+v", after)
	}
	if s.RemoveReferenceFile("nope") {
		t.Fatal("unknown id must be a no-op")
	}
}

func TestAnalyzePreconditions(t *testing.T) {
	api := &fakeAPI{}
	s, notes := newTestStore(t, api)

	if _, err := s.Analyze(context.Background()); err != ErrNoProducts {
		t.Fatalf("err = %v", err)
	}
	if api.mapCalls != 0 {
		t.Fatal("network call issued with no rows")
	}
	if !notes.contains("No products to analyze") {
		t.Fatalf("notes = %v", notes.notes)
	}

	api.extractFn = func() (internal.SheetSet, error) { return sheetFixture(), nil }
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))
	if _, err := s.Analyze(context.Background()); err != ErrNoReferenceData {
		t.Fatalf("err = %v", err)
	}
	if api.mapCalls != 0 {
		t.Fatal("network call issued with no reference data")
	}
}

func TestAnalyzeMergesMatchesAndSentinels(t *testing.T) {
	api := &fakeAPI{
		extractFn: func() (internal.SheetSet, error) {
			return internal.SheetSet{
				Order: []string{"S"},
				Rows: map[string][]internal.Product{
					"S": {{Name: "Widget"}, {Name: "Gadget"}},
				},
			}, nil
		},
		mapFn: func(items []internal.Product) (*internal.MatchResponse, error) {
			if len(items) != 2 {
				t.Fatalf("items = %+v", items)
			}
			return &internal.MatchResponse{
				Items: []internal.MatchedItem{
					{ItemName: "Widget", Price: sp("10"), Provider: sp("Acme"), Origin: sp("USA")},
				},
				CSVURL: sp("/files/out.csv"),
			}, nil
		},
	}
	s, _ := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))
	_ = s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "ref.xlsx"}})

	resp, err := s.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.CSVURL == nil || *resp.CSVURL != "/files/out.csv" {
		t.Fatalf("csv_url = %v", resp.CSVURL)
	}

	analyzed := s.Analyzed()
	if len(analyzed) != 2 {
		t.Fatalf("analyzed = %+v", analyzed)
	}
	widget, gadget := analyzed[0], analyzed[1]
	if widget.Price != "10" || widget.Provider != "Acme" || widget.Origin != "USA" || widget.Type != internal.SentinelUnknown {
		t.Fatalf("widget = %+v", widget)
	}
	if gadget.Price != internal.SentinelNotFound || gadget.Provider != internal.SentinelNotFound || gadget.Origin != internal.SentinelUnknown {
		t.Fatalf("gadget = %+v", gadget)
	}
}

func TestAnalyzeParseErrorIsReportedDistinctly(t *testing.T) {
	api := &fakeAPI{
		extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil },
		mapFn: func([]internal.Product) (*internal.MatchResponse, error) {
			return nil, fmt.Errorf("%w: html instead of json", pricing.ErrParse)
		},
	}
	s, notes := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))
	_ = s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "ref.xlsx"}})

	if _, err := s.Analyze(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !notes.contains("Failed to parse server response") {
		t.Fatalf("notes = %v", notes.notes)
	}
	if s.Flags().IsAnalyzing {
		t.Fatal("analyzing flag stuck after failure")
	}
}

func TestEditInvalidatesAnalyzedResults(t *testing.T) {
	api := &fakeAPI{
		extractFn: func() (internal.SheetSet, error) { return sheetFixture(), nil },
		mapFn: func([]internal.Product) (*internal.MatchResponse, error) {
			return &internal.MatchResponse{}, nil
		},
	}
	s, _ := newTestStore(t, api)
	_ = s.Extract(context.Background(), "bid.xlsx", strings.NewReader("x"))
	_ = s.IngestReferenceFiles(context.Background(), []NamedFile{{Name: "ref.xlsx"}})
	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.Analyzed()) == 0 {
		t.Fatal("expected analyzed rows")
	}

	_ = s.EditRow(0, internal.Product{Name: "Edited"})
	if len(s.Analyzed()) != 0 {
		t.Fatal("analyzed rows must be invalidated by an edit")
	}
}

func TestWriteCSVRequiresAnalyzedRows(t *testing.T) {
	api := &fakeAPI{}
	s, notes := newTestStore(t, api)
	if err := s.WriteCSV(io.Discard); err != ErrNoAnalysis {
		t.Fatalf("err = %v", err)
	}
	if !notes.contains("No analyzed data") {
		t.Fatalf("notes = %v", notes.notes)
	}
}
