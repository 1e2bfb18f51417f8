// Package cli is an interactive POI search console for debugging and trying out datasets
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/dataset"
	"github.com/bastiangx/poiserve/pkg/index"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	distStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	linkStyle  = lipgloss.NewStyle().Faint(true)
)

const help = `type a query and press Enter to search (Ctrl+C or :q to exit)
  :loc <lat> <lon>   set the reference position
  :load [dataset]    load a dataset by name, path or URL (default if empty)
  :datasets          list the datasets in the data directory
  :words [prefix]    list indexed words starting with prefix
  :stats             show index counters
  :help              show this help`

// wordsShown caps the :words listing.
const wordsShown = 50

// DatasetLoader loads a dataset by name, path or URL and lists the named
// datasets it can find.
type DatasetLoader interface {
	Load(ctx context.Context, source string) (*dataset.Dataset, error)
	Available() ([]string, error)
}

// Options holds the console settings.
type Options struct {
	Limit       int
	MaxQueryLen int
	Lat, Lon    float64
	ShowLinks   bool
	Dataset     string
	IndexOpts   []index.Option
}

// InputHandler reads queries and commands from the input and prints
// results to the output. Diagnostics go to the logger.
type InputHandler struct {
	index        *index.Index
	loader       DatasetLoader
	opts         Options
	in           io.Reader
	out          io.Writer
	requestCount int
}

// NewInputHandler returns a console over stdin/stdout. ix may be nil until a
// :load succeeds.
func NewInputHandler(ix *index.Index, loader DatasetLoader, opts Options) *InputHandler {
	return &InputHandler{
		index:  ix,
		loader: loader,
		opts:   opts,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// SetIO replaces stdin/stdout.
func (h *InputHandler) SetIO(in io.Reader, out io.Writer) {
	h.in = in
	h.out = out
}

// Start runs the loop until the input ends or :q is entered.
func (h *InputHandler) Start(ctx context.Context) error {
	log.Print("PoiServe CLI [BETA]")
	log.Print(help)

	scanner := bufio.NewScanner(h.in)
	for {
		log.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ":q" || line == ":quit" {
			return nil
		}
		h.handleInput(ctx, line)
	}
}

// handleInput dispatches a line to a command or a search.
func (h *InputHandler) handleInput(ctx context.Context, line string) {
	if !strings.HasPrefix(line, ":") {
		h.search(line)
		return
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":loc":
		h.locate(fields[1:])
	case ":load":
		source := strings.TrimSpace(strings.TrimPrefix(line, ":load"))
		h.load(ctx, source)
	case ":datasets":
		h.datasets()
	case ":words":
		h.words(strings.Join(fields[1:], " "))
	case ":stats":
		h.stats()
	case ":help":
		fmt.Fprintln(h.out, help)
	default:
		log.Errorf("Unknown command: %s", fields[0])
	}
}

func (h *InputHandler) search(query string) {
	h.requestCount++
	if h.index == nil {
		log.Error("No dataset loaded, use :load <dataset>")
		return
	}
	if !utils.IsValidQuery(query, h.opts.MaxQueryLen) {
		log.Errorf("Query too long: %s", query)
		return
	}

	start := time.Now()
	results := h.index.Search(query, h.opts.Lat, h.opts.Lon)
	if h.opts.Limit > 0 && len(results) > h.opts.Limit {
		results = results[:h.opts.Limit]
	}
	log.Debugf("Took [ %v ] for query '%s'", time.Since(start), query)

	if len(results) == 0 {
		log.Warnf("Nothing found for '%s'", query)
		return
	}

	for i, r := range results {
		fmt.Fprintf(h.out, "%2d. %s – %s\n", i+1, titleStyle.Render(r.Title),
			distStyle.Render(utils.FormatWithCommas(r.Meters())+" м."))
		if h.opts.ShowLinks {
			fmt.Fprintf(h.out, "    %s\n", linkStyle.Render(utils.MapsLink(r.Coord.Lat, r.Coord.Lon)))
		}
	}
}

func (h *InputHandler) locate(args []string) {
	if len(args) != 2 {
		log.Error("Usage: :loc <lat> <lon>")
		return
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		log.Errorf("Invalid latitude: %s", args[0])
		return
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil || lon < -180 || lon > 180 {
		log.Errorf("Invalid longitude: %s", args[1])
		return
	}
	h.opts.Lat, h.opts.Lon = lat, lon
	fmt.Fprintf(h.out, "position: %s\n", utils.MapsLink(lat, lon))
}

// load replaces the index only when the dataset loads.
func (h *InputHandler) load(ctx context.Context, source string) {
	if h.loader == nil {
		log.Error("Loading datasets is disabled")
		return
	}
	ds, err := h.loader.Load(ctx, source)
	if err != nil {
		log.Errorf("Failed to load dataset: %v", err)
		return
	}
	ix, warnings := index.FromDataset(ds, h.opts.IndexOpts...)
	h.index = ix
	h.opts.Dataset = ds.Name
	fmt.Fprintf(h.out, "loaded %s pois from %s (%d skipped)\n",
		utils.FormatWithCommas(ix.Len()), ds.Source, len(warnings))
}

func (h *InputHandler) datasets() {
	if h.loader == nil {
		log.Error("Loading datasets is disabled")
		return
	}
	names, err := h.loader.Available()
	if err != nil {
		log.Errorf("Failed to list datasets: %v", err)
		return
	}
	if len(names) == 0 {
		log.Warn("No datasets found")
		return
	}
	for _, name := range names {
		marker := " "
		if name == h.opts.Dataset {
			marker = "*"
		}
		fmt.Fprintf(h.out, "%s %s\n", marker, name)
	}
}

// words dumps the trie under prefix, for checking how names were normalized.
func (h *InputHandler) words(prefix string) {
	if h.index == nil {
		log.Error("No dataset loaded")
		return
	}
	words := h.index.Words(prefix, wordsShown+1)
	if len(words) == 0 {
		log.Warnf("No words under '%s'", prefix)
		return
	}
	for i, w := range words {
		if i == wordsShown {
			fmt.Fprintln(h.out, "...")
			break
		}
		fmt.Fprintf(h.out, "%-24s %d\n", w.Word, w.POIs)
	}
}

func (h *InputHandler) stats() {
	if h.index == nil {
		log.Error("No dataset loaded")
		return
	}
	s := h.index.Stats()
	fmt.Fprintf(h.out, "dataset: %s\n", h.opts.Dataset)
	for _, key := range []string{"pois", "words", "skipped", "cacheEntries"} {
		if v, ok := s[key]; ok {
			fmt.Fprintf(h.out, "%-13s %s\n", key+":", utils.FormatWithCommas(v))
		}
	}
	fmt.Fprintf(h.out, "queries:      %d\n", h.requestCount)
}
