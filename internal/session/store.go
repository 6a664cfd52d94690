// Package session owns all mutable state of one working session: the
// current bid file, extracted rows per sheet, uploaded reference files, the
// canonical provider pricing dataset and the analyzed rows. Every mutation
// goes through the Store; concurrent async operations commit against the
// latest state, never against a snapshot captured before a network call.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bidmatch/internal"
	"bidmatch/internal/config"
	"bidmatch/internal/i18n"
	"bidmatch/internal/pricing"
	"bidmatch/internal/progress"
	"bidmatch/internal/upload"
)

var (
	ErrInvalidFile     = errors.New("file type not allowed")
	ErrBusy            = errors.New("operation already in flight")
	ErrNoProducts      = errors.New("no extracted products")
	ErrNoReferenceData = errors.New("no provider pricing data")
	ErrNoAnalysis      = errors.New("no analyzed products")
	ErrIndexOutOfRange = errors.New("row index out of range")
)

// API is the subset of the pricing backend the store depends on.
type API interface {
	ExtractItems(ctx context.Context, fileName string, file io.Reader) (internal.SheetSet, error)
	ExtractProviderPricing(ctx context.Context, files []internal.ReferenceFile) ([]internal.ProviderPricingSheet, error)
	MapItems(ctx context.Context, items []internal.Product, dataset []internal.ProviderPricingSheet) (*internal.MatchResponse, error)
}

// NamedFile is an uploaded file already read into memory.
type NamedFile struct {
	Name string
	Data []byte
}

// Flags mirrors the in-flight indicators the UI uses to disable actions.
type Flags struct {
	IsLoading          bool `json:"isLoading"`
	IsAnalyzing        bool `json:"isAnalyzing"`
	IsProcessingFolder bool `json:"isProcessingFolder"`
}

type Store struct {
	cfg      config.Config
	api      API
	tr       *i18n.Store
	notifier Notifier
	events   EventSink
	log      zerolog.Logger

	mu             sync.Mutex
	fileName       string
	sheets         internal.SheetSet
	selectedSheet  string
	referenceFiles []internal.ReferenceFile
	pricingData    []internal.ProviderPricingSheet
	analyzed       []internal.AnalyzedProduct
	flags          Flags

	ingestSeq       uint64
	pricingGen      uint64
	inflightIngests int
}

func NewStore(cfg config.Config, api API, tr *i18n.Store, notifier Notifier, events EventSink, log zerolog.Logger) *Store {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopSink{}
	}
	return &Store{
		cfg:      cfg,
		api:      api,
		tr:       tr,
		notifier: notifier,
		events:   events,
		log:      log,
		sheets:   internal.SheetSet{Rows: map[string][]internal.Product{}},
	}
}

// ClearWorkingFile drops the working file and every piece of state derived
// from it. Reference files survive; they belong to the session, not the file.
func (s *Store) ClearWorkingFile() {
	s.mu.Lock()
	s.fileName = ""
	s.sheets = internal.SheetSet{Rows: map[string][]internal.Product{}}
	s.selectedSheet = ""
	s.analyzed = nil
	s.mu.Unlock()
}

// Extract uploads a bid spreadsheet to the extraction backend and replaces
// the sheet set on success. A failed call leaves all prior state untouched.
func (s *Store) Extract(ctx context.Context, fileName string, file io.Reader) error {
	if !upload.Allowed(fileName, s.cfg.UploadAllowedExts) {
		s.notifyReplaced(NoteError, "toast.invalidFileType", "{files}", fileName)
		return fmt.Errorf("%w: %s", ErrInvalidFile, fileName)
	}

	s.mu.Lock()
	if s.flags.IsLoading {
		s.mu.Unlock()
		s.notify(NoteWarning, "toast.busy")
		return ErrBusy
	}
	s.flags.IsLoading = true
	s.mu.Unlock()

	est := s.decayEstimator(OpExtract)
	est.Start()

	set, err := s.api.ExtractItems(ctx, fileName, file)
	if err != nil {
		est.Cancel()
		s.mu.Lock()
		s.flags.IsLoading = false
		s.mu.Unlock()
		s.reportUpstream(err, "toast.fileError")
		return err
	}
	est.Complete()

	s.mu.Lock()
	s.fileName = fileName
	s.sheets = set
	s.selectedSheet = ""
	if len(set.Order) > 0 {
		s.selectedSheet = set.Order[0]
	}
	s.analyzed = nil
	s.flags.IsLoading = false
	s.mu.Unlock()

	s.notify(NoteSuccess, "toast.fileProcessed")
	return nil
}

// SelectSheet is a pure projection over the already-held sheet set. Unknown
// names clear the selection, which yields an empty row set downstream.
func (s *Store) SelectSheet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets.Rows[name]; ok {
		s.selectedSheet = name
		return
	}
	s.selectedSheet = ""
}

// EditRow replaces the row at index on the selected sheet. Stale analysis
// results are dropped so edited rows are never shown against old matches.
func (s *Store) EditRow(index int, row internal.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets.Rows[s.selectedSheet]
	if index < 0 || index >= len(rows) {
		s.log.Warn().Int("index", index).Int("rows", len(rows)).Msg("edit index out of range")
		return ErrIndexOutOfRange
	}
	next := append([]internal.Product(nil), rows...)
	next[index] = row
	s.sheets.Rows[s.selectedSheet] = next
	s.analyzed = nil
	return nil
}

// DeleteRow removes the row at index on the selected sheet; subsequent
// indices shift down by one.
func (s *Store) DeleteRow(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets.Rows[s.selectedSheet]
	if index < 0 || index >= len(rows) {
		s.log.Warn().Int("index", index).Int("rows", len(rows)).Msg("delete index out of range")
		return ErrIndexOutOfRange
	}
	next := append([]internal.Product(nil), rows[:index]...)
	next = append(next, rows[index+1:]...)
	s.sheets.Rows[s.selectedSheet] = next
	s.analyzed = nil
	return nil
}

// IngestReferenceFiles validates and appends provider files, then resends
// the whole retained batch through the provider-pricing endpoint to rebuild
// the canonical dataset. Appends happen against current state so concurrent
// ingestions cannot lose each other's files, and each ingestion carries a
// generation number: a response arriving after a newer batch has already
// committed is discarded, so the dataset can never roll back to a smaller
// batch.
func (s *Store) IngestReferenceFiles(ctx context.Context, files []NamedFile) error {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	part := upload.Validate(names, s.cfg.UploadAllowedExts)
	if len(part.Rejected) > 0 {
		s.notifyReplaced(NoteWarning, "toast.invalidFileType", "{files}", strings.Join(part.Rejected, ", "))
	}
	if len(part.Accepted) == 0 {
		s.notify(NoteError, "toast.noExcelFiles")
		return ErrInvalidFile
	}

	acceptedSet := make(map[string]struct{}, len(part.Accepted))
	for _, name := range part.Accepted {
		acceptedSet[name] = struct{}{}
	}
	records := make([]internal.ReferenceFile, 0, len(part.Accepted))
	for _, f := range files {
		if _, ok := acceptedSet[f.Name]; !ok {
			continue
		}
		records = append(records, internal.ReferenceFile{
			ID:         newReferenceID(),
			Name:       f.Name,
			UploadedAt: time.Now(),
			Data:       f.Data,
		})
	}

	s.mu.Lock()
	s.referenceFiles = append(s.referenceFiles, records...)
	batch := append([]internal.ReferenceFile(nil), s.referenceFiles...)
	s.ingestSeq++
	gen := s.ingestSeq
	s.inflightIngests++
	s.flags.IsProcessingFolder = true
	s.mu.Unlock()

	total := time.Duration(len(batch)*s.cfg.IngestSecondsPerFile) * time.Second
	est := s.deadlineEstimator(OpReference, total)
	est.Start()

	dataset, err := s.api.ExtractProviderPricing(ctx, batch)
	if err != nil {
		est.Cancel()
		s.mu.Lock()
		s.inflightIngests--
		s.flags.IsProcessingFolder = s.inflightIngests > 0
		s.mu.Unlock()
		s.reportUpstream(err, "toast.referenceError")
		return err
	}
	est.Complete()

	s.mu.Lock()
	if gen > s.pricingGen {
		s.pricingData = dataset
		s.pricingGen = gen
	}
	s.inflightIngests--
	s.flags.IsProcessingFolder = s.inflightIngests > 0
	s.mu.Unlock()

	s.notifyReplaced(NoteSuccess, "toast.referenceUploaded", "{count}", strconv.Itoa(len(records)))
	return nil
}

// RemoveReferenceFile removes by id. The canonical dataset is deliberately
// not rebuilt; the next ingestion resends only the files that remain.
func (s *Store) RemoveReferenceFile(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]internal.ReferenceFile, 0, len(s.referenceFiles))
	removed := false
	for _, f := range s.referenceFiles {
		if f.ID == id {
			removed = true
			continue
		}
		next = append(next, f)
	}
	s.referenceFiles = next
	return removed
}

// Analyze submits the selected sheet's rows plus the canonical dataset for
// matching and merges the verdict into analyzed rows. Precondition failures
// surface a toast and never reach the network.
func (s *Store) Analyze(ctx context.Context) (*internal.MatchResponse, error) {
	s.mu.Lock()
	rows := append([]internal.Product(nil), s.sheets.Rows[s.selectedSheet]...)
	dataset := append([]internal.ProviderPricingSheet(nil), s.pricingData...)
	busy := s.flags.IsAnalyzing
	if len(rows) == 0 {
		s.mu.Unlock()
		s.notify(NoteError, "toast.noProducts")
		return nil, ErrNoProducts
	}
	if len(dataset) == 0 {
		s.mu.Unlock()
		s.notify(NoteError, "toast.noReference")
		return nil, ErrNoReferenceData
	}
	if busy {
		s.mu.Unlock()
		s.notify(NoteWarning, "toast.busy")
		return nil, ErrBusy
	}
	s.flags.IsAnalyzing = true
	s.mu.Unlock()

	s.notifyReplaced(NoteInfo, "analysis.productCount", "{count}", strconv.Itoa(len(rows)))
	total := time.Duration(len(rows)*s.cfg.AnalyzeSecondsPerRow) * time.Second
	est := s.deadlineEstimator(OpAnalyze, total)
	est.Start()

	resp, err := s.api.MapItems(ctx, rows, dataset)
	if err != nil {
		est.Cancel()
		s.mu.Lock()
		s.flags.IsAnalyzing = false
		s.mu.Unlock()
		s.reportUpstream(err, "toast.analyzeError")
		return nil, err
	}
	est.Complete()

	analyzed := mergeMatches(rows, resp.Items)
	s.mu.Lock()
	s.analyzed = analyzed
	s.flags.IsAnalyzing = false
	s.mu.Unlock()

	s.notify(NoteSuccess, "toast.analyzeSuccess")
	return resp, nil
}

// mergeMatches pairs each original row with the first response item whose
// name matches exactly; unmatched fields fall back to the sentinels.
func mergeMatches(rows []internal.Product, items []internal.MatchedItem) []internal.AnalyzedProduct {
	out := make([]internal.AnalyzedProduct, 0, len(rows))
	for _, row := range rows {
		a := internal.AnalyzedProduct{
			Product:  row,
			Price:    internal.SentinelNotFound,
			Provider: internal.SentinelNotFound,
			Origin:   internal.SentinelUnknown,
			Type:     internal.SentinelUnknown,
		}
		for _, item := range items {
			if item.ItemName != row.Name {
				continue
			}
			if item.Price != nil {
				a.Price = *item.Price
			}
			if item.Provider != nil {
				a.Provider = *item.Provider
			}
			if item.Origin != nil {
				a.Origin = *item.Origin
			}
			if item.Type != nil {
				a.Type = *item.Type
			}
			break
		}
		out = append(out, a)
	}
	return out
}

func (s *Store) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

func (s *Store) SheetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sheets.Order...)
}

func (s *Store) SelectedSheet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedSheet
}

// Products returns the rows of the selected sheet.
func (s *Store) Products() []internal.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.Product(nil), s.sheets.Rows[s.selectedSheet]...)
}

func (s *Store) Analyzed() []internal.AnalyzedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.AnalyzedProduct(nil), s.analyzed...)
}

func (s *Store) ReferenceFiles() []internal.ReferenceFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.ReferenceFile(nil), s.referenceFiles...)
}

// PricingSheets returns the canonical provider pricing dataset.
func (s *Store) PricingSheets() []internal.ProviderPricingSheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.ProviderPricingSheet(nil), s.pricingData...)
}

func (s *Store) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func (s *Store) decayEstimator(op string) *progress.Estimator {
	tick := time.Duration(s.cfg.ProgressTickMs) * time.Millisecond
	return progress.NewDecay(s.cfg.ProgressCap, s.cfg.ProgressDecayFactor, tick, func(v float64, remaining time.Duration) {
		s.events.Progress(op, v, remaining)
	})
}

func (s *Store) deadlineEstimator(op string, total time.Duration) *progress.Estimator {
	tick := time.Duration(s.cfg.ProgressTickMs) * time.Millisecond
	return progress.NewDeadline(total, s.cfg.ProgressCap, tick, func(v float64, remaining time.Duration) {
		s.events.Progress(op, v, remaining)
	})
}

func (s *Store) notify(kind, key string) {
	s.notifier.Notify(kind, s.tr.Translate(key))
}

func (s *Store) notifyReplaced(kind, key, placeholder, value string) {
	msg := strings.ReplaceAll(s.tr.Translate(key), placeholder, value)
	s.notifier.Notify(kind, msg)
}

// reportUpstream surfaces a backend failure, keeping parse errors
// distinguishable from network or status errors.
func (s *Store) reportUpstream(err error, fallbackKey string) {
	if errors.Is(err, pricing.ErrParse) {
		s.log.Error().Err(err).Msg("backend response parse failure")
		s.notify(NoteError, "toast.parseError")
		return
	}
	s.log.Error().Err(err).Msg("backend call failed")
	s.notify(NoteError, fallbackKey)
}

// newReferenceID builds a time-based id with a random suffix so two files
// uploaded within the same millisecond still get distinct ids.
func newReferenceID() string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
