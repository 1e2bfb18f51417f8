// Package dataset loads POI datasets from disk or over HTTP.
//
// A source is one of:
//   - a dataset name such as "kyiv-center", looked up as
//     <data dir>/<name>/objects.json (or .json.zst, .msgpack, .msgpack.zst)
//   - a path to a dataset file
//   - an http:// or https:// URL
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastiangx/poiserve/internal/logger"
	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/poi"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// DefaultName is the dataset used when nothing else is configured.
const DefaultName = "kyiv-center"

var (
	// ErrNotFound means the source does not exist.
	ErrNotFound = errors.New("dataset not found")
	// ErrUnknownFormat means the encoding could not be determined.
	ErrUnknownFormat = errors.New("unknown dataset format")
)

// progressStep is how many bytes are read between progress reports.
const progressStep = 256 << 10

// Progress is reported while a dataset is being read.
type Progress struct {
	Source string
	Read   int64
	// Total is -1 when the size is not known.
	Total int64
}

func (p Progress) String() string {
	total := "?"
	if p.Total >= 0 {
		total = humanize.Bytes(uint64(p.Total))
	}
	return fmt.Sprintf("Loading %s... %s / %s", p.Source, humanize.Bytes(uint64(p.Read)), total)
}

// Options control where and how datasets are loaded.
type Options struct {
	// DataDir holds one directory per named dataset.
	DataDir string
	// Default replaces an empty source name.
	Default string
	// Timeout bounds HTTP downloads. Zero means no timeout.
	Timeout time.Duration
	Client  *http.Client
	// Progress, when set, is called as bytes are read.
	Progress func(Progress)
	Logger   *log.Logger
}

// Dataset is a decoded dataset.
type Dataset struct {
	// Name is the requested source, or the default name when none was given.
	Name string
	// Source is the resolved file path or URL.
	Source   string
	Encoding Encoding
	// Size is the number of bytes read before decompression.
	Size int64
	POIs map[string]poi.POI
}

// Loader loads datasets with fixed options.
type Loader struct {
	opts Options
	log  *log.Logger
}

// NewLoader returns a Loader. A nil Client uses http.DefaultClient.
func NewLoader(opts Options) *Loader {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Default == "" {
		opts.Default = DefaultName
	}
	l := opts.Logger
	if l == nil {
		l = logger.New("dataset")
	}
	return &Loader{opts: opts, log: l}
}

// Load resolves and decodes source. Nothing is returned on partial reads.
func (l *Loader) Load(ctx context.Context, source string) (*Dataset, error) {
	location, err := l.Resolve(source)
	if err != nil {
		return nil, err
	}
	enc, err := DetectEncoding(location)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		body  io.ReadCloser
		total int64
	)
	if isURL(location) {
		body, total, err = l.fetch(ctx, location)
	} else {
		body, total, err = openFile(location)
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	pr := &progressReader{
		ctx:      ctx,
		r:        body,
		progress: Progress{Source: location, Total: total},
		report:   l.opts.Progress,
	}
	pois, err := Decode(pr, enc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("loading %s: %w", location, ctxErr)
		}
		return nil, fmt.Errorf("loading %s: %w", location, err)
	}
	pr.flush()

	l.log.Debugf("Loaded %s pois from %s (%s, %s) in %v",
		utils.FormatWithCommas(len(pois)), location, enc, humanize.Bytes(uint64(pr.progress.Read)), time.Since(start))

	return &Dataset{
		Name:     l.Name(source),
		Source:   location,
		Encoding: enc,
		Size:     pr.progress.Read,
		POIs:     pois,
	}, nil
}

// Name returns source with the default dataset filled in.
func (l *Loader) Name(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return l.opts.Default
	}
	return source
}

// Resolve turns a source into a file path or URL without reading it.
func (l *Loader) Resolve(source string) (string, error) {
	source = l.Name(source)
	if isURL(source) {
		return source, nil
	}
	if looksLikePath(source) {
		if !utils.FileExists(source) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, source)
		}
		return source, nil
	}

	dir := filepath.Join(l.opts.DataDir, source)
	for _, name := range utils.DatasetFiles {
		candidate := filepath.Join(dir, name)
		if utils.FileExists(candidate) {
			return candidate, nil
		}
		l.log.Debugf("Dataset candidate not found: %s", candidate)
	}
	return "", fmt.Errorf("%w: %q in %s", ErrNotFound, source, l.opts.DataDir)
}

// Available lists the dataset names found in the data directory.
func (l *Loader) Available() ([]string, error) {
	entries, err := os.ReadDir(l.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir %s: %w", l.opts.DataDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, file := range utils.DatasetFiles {
			if utils.FileExists(filepath.Join(l.opts.DataDir, e.Name(), file)) {
				names = append(names, e.Name())
				break
			}
		}
	}
	return names, nil
}

func (l *Loader) fetch(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		body, total, err := l.get(ctx, location)
		if err != nil {
			cancel()
			return nil, 0, err
		}
		return &cancelCloser{ReadCloser: body, cancel: cancel}, total, nil
	}
	return l.get(ctx, location)
}

func (l *Loader) get(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("bad dataset url %s: %w", location, err)
	}
	resp, err := l.opts.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", location, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, location)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("fetching %s: unexpected status %s", location, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

func openFile(location string) (io.ReadCloser, int64, error) {
	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", location, err)
	}
	total := int64(-1)
	if stat, err := f.Stat(); err == nil {
		total = stat.Size()
	}
	return f, total, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// looksLikePath reports whether s names a file rather than a dataset.
func looksLikePath(s string) bool {
	if strings.ContainsAny(s, `/\`) {
		return true
	}
	_, err := DetectEncoding(s)
	return err == nil
}

type cancelCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// progressReader counts bytes and stops on context cancellation.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	progress Progress
	report   func(Progress)
	last     int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.progress.Read += int64(n)
	if p.report != nil && p.progress.Read-p.last >= progressStep {
		p.last = p.progress.Read
		p.report(p.progress)
	}
	return n, err
}

func (p *progressReader) flush() {
	if p.report != nil && p.last != p.progress.Read {
		p.last = p.progress.Read
		p.report(p.progress)
	}
}
