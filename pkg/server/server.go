package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/config"
	"github.com/bastiangx/poiserve/pkg/dataset"
	"github.com/bastiangx/poiserve/pkg/index"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// maxWarnings caps the warnings echoed in a LoadResponse.
const maxWarnings = 20

// DatasetLoader loads a dataset by name, path or URL and lists the named
// datasets it can find.
type DatasetLoader interface {
	Load(ctx context.Context, source string) (*dataset.Dataset, error)
	Available() ([]string, error)
}

// Server handles the IPC for POI search
type Server struct {
	index     *index.Index
	dataset   string
	source    string
	loader    DatasetLoader
	indexOpts []index.Option
	cfg       config.ServerConfig

	lat, lon float64

	decoder *msgpack.Decoder
	writer  *bufio.Writer
	encoder *msgpack.Encoder
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin/stdout.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(s *Server) {
		s.decoder = msgpack.NewDecoder(bufio.NewReader(r))
		s.writer = bufio.NewWriter(w)
	}
}

// WithIndexOptions are applied to every index built by a load request.
func WithIndexOptions(opts ...index.Option) Option {
	return func(s *Server) {
		s.indexOpts = opts
	}
}

// WithDataset records which dataset the initial index was built from.
func WithDataset(name, source string) Option {
	return func(s *Server) {
		s.dataset = name
		s.source = source
	}
}

// NewServer creates a search server using stdin/stdout for IPC. ix may be nil
// until a load request succeeds.
func NewServer(ix *index.Index, loader DatasetLoader, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		index:  ix,
		loader: loader,
		cfg:    cfg,
		lat:    cfg.DefaultLat,
		lon:    cfg.DefaultLon,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.decoder == nil {
		WithIO(os.Stdin, os.Stdout)(s)
	}
	s.encoder = msgpack.NewEncoder(s.writer)
	return s
}

// Start serves requests until the input is closed or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting Server.")

	s.sendResponse(map[string]string{"status": "ready"})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := s.decoder.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("Input closed, stopping server.")
				return nil
			}
			log.Errorf("Reading request: %v", err)
			return err
		}
		s.handleRequest(ctx, raw)
	}
}

// handleRequest decodes one message and dispatches it by action.
func (s *Server) handleRequest(ctx context.Context, raw msgpack.RawMessage) {
	var req Request
	if err := msgpack.Unmarshal(raw, &req); err != nil {
		log.Errorf("Unmarshaling request: %v", err)
		s.sendError("", "Invalid msgpack request", 400)
		return
	}

	switch req.Action {
	case "", ActionSearch:
		s.handleSearch(req)
	case ActionLocate:
		s.handleLocate(req)
	case ActionLoad:
		s.handleLoad(ctx, req)
	case ActionInfo:
		s.handleInfo(req)
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown action: %s", req.Action), 400)
	}
}

func (s *Server) handleSearch(req Request) {
	if s.index == nil {
		s.sendError(req.ID, "No dataset loaded", 503)
		return
	}
	if s.cfg.MaxQueryLen > 0 && len([]rune(req.Query)) > s.cfg.MaxQueryLen {
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", s.cfg.MaxQueryLen), 400)
		log.Debug("Query is too long in request")
		return
	}

	lat, lon := s.lat, s.lon
	if req.Lat != nil {
		lat = *req.Lat
	}
	if req.Lon != nil {
		lon = *req.Lon
	}
	if err := validPosition(lat, lon); err != nil {
		s.sendError(req.ID, err.Error(), 400)
		return
	}

	limit := req.Limit
	if s.cfg.MaxResults > 0 && (limit < 1 || limit > s.cfg.MaxResults) {
		limit = s.cfg.MaxResults
	}

	start := time.Now()
	results := s.index.Search(req.Query, lat, lon)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	elapsed := time.Since(start)

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:    string(r.ID),
			Title: r.Title,
			Dist:  r.Meters(),
			Lat:   r.Coord.Lat,
			Lon:   r.Coord.Lon,
		}
	}

	log.Debugf("Search %q at %.5f,%.5f: %d results in %v", req.Query, lat, lon, len(out), elapsed)
	s.sendResponse(SearchResponse{
		ID:        req.ID,
		Results:   out,
		Count:     len(out),
		TimeTaken: elapsed.Microseconds(),
	})
}

func (s *Server) handleLocate(req Request) {
	if req.Lat == nil || req.Lon == nil {
		s.sendError(req.ID, "Missing 'lat' or 'lon' parameter", 400)
		return
	}
	if err := validPosition(*req.Lat, *req.Lon); err != nil {
		s.sendError(req.ID, err.Error(), 400)
		return
	}
	s.lat, s.lon = *req.Lat, *req.Lon
	log.Debugf("Reference position set to %.5f,%.5f", s.lat, s.lon)
	s.sendResponse(LocateResponse{ID: req.ID, Status: "ok", Lat: s.lat, Lon: s.lon})
}

// handleLoad builds a new index off to the side and swaps it in on success.
func (s *Server) handleLoad(ctx context.Context, req Request) {
	if s.loader == nil {
		s.sendError(req.ID, "Loading datasets is disabled", 400)
		return
	}

	ds, err := s.loader.Load(ctx, req.Dataset)
	if err != nil {
		log.Errorf("Loading dataset %q: %v", req.Dataset, err)
		code := 500
		if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrUnknownFormat) {
			code = 400
		}
		s.sendError(req.ID, err.Error(), code)
		return
	}

	ix, warnings := index.FromDataset(ds, s.indexOpts...)
	s.index = ix
	s.dataset = ds.Name
	s.source = ds.Source

	msgs := make([]string, 0, min(len(warnings), maxWarnings))
	for _, w := range warnings {
		if len(msgs) == maxWarnings {
			break
		}
		msgs = append(msgs, w.Error())
	}

	log.Infof("Loaded %s pois from %s, skipped %d", utils.FormatWithCommas(ix.Len()), ds.Source, len(warnings))
	s.sendResponse(LoadResponse{
		ID:       req.ID,
		Status:   "ok",
		Dataset:  ds.Name,
		POIs:     ix.Len(),
		Skipped:  len(warnings),
		Warnings: msgs,
	})
}

func (s *Server) handleInfo(req Request) {
	if s.index == nil {
		s.sendError(req.ID, "No dataset loaded", 503)
		return
	}
	var available []string
	if s.loader != nil {
		names, err := s.loader.Available()
		if err != nil {
			log.Warnf("Listing datasets: %v", err)
		}
		available = names
	}
	s.sendResponse(InfoResponse{
		ID:        req.ID,
		Status:    "ok",
		Dataset:   s.dataset,
		Source:    s.source,
		Stats:     s.index.Stats(),
		Lat:       s.lat,
		Lon:       s.lon,
		Available: available,
	})
}

func validPosition(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid position %v,%v", lat, lon)
	}
	return nil
}

// sendResponse writes one msgpack message and flushes it to the client.
func (s *Server) sendResponse(response any) {
	if err := s.encoder.Encode(response); err != nil {
		log.Errorf("Marshaling response: %v", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		log.Errorf("Writing response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(ErrorResponse{
		ID:    id,
		Error: message,
		Code:  code,
	})
}
