package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"bidmatch/internal/config"
	"bidmatch/internal/i18n"
	"bidmatch/internal/logs"
	"bidmatch/internal/pricing"
	"bidmatch/internal/server"
	"bidmatch/internal/session"
	"bidmatch/internal/upload"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		log := logs.New(false)
		tr := i18n.NewStore(i18n.Language(cfg.DefaultLanguage), log)
		client := pricing.NewClient(cfg, log)
		hub := server.NewHub(log)
		store := session.NewStore(cfg, client, tr, hub, hub, log)
		h := server.NewHandler(store, tr, client.BaseURL(), log)
		router := server.NewRouter(cfg, h, hub, log)

		log.Info().Str("addr", cfg.ListenAddr).Str("backend", client.BaseURL()).Msg("gateway starting")
		must(router.Run(cfg.ListenAddr))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "bid spreadsheet path")
		refDir := fs.String("reference-dir", "", "directory of provider price lists")
		out := fs.String("out", "", "output path (.csv or .xlsx)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" || strings.TrimSpace(*refDir) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--input --reference-dir --out are required"))
		}
		must(runOnce(cfg, *input, *refDir, *out))
	default:
		usage()
		os.Exit(1)
	}
}

// runOnce drives one full extract-ingest-analyze-export cycle without the
// HTTP surface. Toasts land in the log instead of a websocket.
func runOnce(cfg config.Config, input, refDir, out string) error {
	log := logs.New(true)
	tr := i18n.NewStore(i18n.Language(cfg.DefaultLanguage), log)
	client := pricing.NewClient(cfg, log)
	store := session.NewStore(cfg, client, tr, logNotifier{log}, nil, log)
	ctx := context.Background()

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	err = store.Extract(ctx, filepath.Base(input), f)
	f.Close()
	if err != nil {
		return err
	}
	log.Info().Str("file", store.FileName()).Strs("sheets", store.SheetNames()).Msg("extracted")

	files, err := readReferenceDir(refDir, cfg.UploadAllowedExts)
	if err != nil {
		return err
	}
	if err := store.IngestReferenceFiles(ctx, files); err != nil {
		return err
	}

	if _, err := store.Analyze(ctx); err != nil {
		return err
	}

	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	defer dst.Close()

	if strings.EqualFold(filepath.Ext(out), ".xlsx") {
		err = store.WriteXLSX(dst)
	} else {
		err = store.WriteCSV(dst)
	}
	if err != nil {
		return err
	}
	log.Info().Int("rows", len(store.Analyzed())).Str("out", out).Msg("analysis written")
	return nil
}

// readReferenceDir walks the provider directory and reads the accepted
// spreadsheets. Rejected names are forwarded empty so ingestion can still
// warn about them by name.
func readReferenceDir(dir string, allowlist []string) ([]session.NamedFile, error) {
	part, err := upload.CollectDir(dir, allowlist)
	if err != nil {
		return nil, err
	}
	files := make([]session.NamedFile, 0, len(part.Accepted)+len(part.Rejected))
	for _, path := range part.Accepted {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, session.NamedFile{Name: path, Data: data})
	}
	for _, path := range part.Rejected {
		files = append(files, session.NamedFile{Name: path})
	}
	return files, nil
}

// logNotifier routes toasts to the console for one-shot runs.
type logNotifier struct {
	log zerolog.Logger
}

func (n logNotifier) Notify(kind, message string) {
	switch kind {
	case session.NoteError:
		n.log.Error().Msg(message)
	case session.NoteWarning:
		n.log.Warn().Msg(message)
	default:
		n.log.Info().Msg(message)
	}
}

func usage() {
	fmt.Println("usage: bidmatch <command>")
	fmt.Println("commands:")
	fmt.Println("  serve  start the HTTP gateway")
	fmt.Println("  run    one-shot analysis: --input <bid.xlsx> --reference-dir <dir> --out <file.csv|file.xlsx>")
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
