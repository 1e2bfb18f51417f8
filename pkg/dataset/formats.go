package dataset

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/bastiangx/poiserve/pkg/poi"
	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the encoding of a dataset file.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON           // id -> {id, names, coords} object
	FormatMsgpack        // same shape, msgpack map
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// Encoding describes how a dataset file is stored.
type Encoding struct {
	Format     Format
	Compressed bool
}

func (e Encoding) String() string {
	if e.Compressed {
		return e.Format.String() + "+zstd"
	}
	return e.Format.String()
}

// DetectEncoding guesses the encoding from a file name or URL. A trailing
// .zst marks zstd compression.
func DetectEncoding(location string) (Encoding, error) {
	name := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	name = strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))

	var enc Encoding
	if strings.HasSuffix(name, ".zst") {
		enc.Compressed = true
		name = strings.TrimSuffix(name, ".zst")
	}

	switch path.Ext(name) {
	case ".json":
		enc.Format = FormatJSON
	case ".msgpack", ".mpk":
		enc.Format = FormatMsgpack
	default:
		return Encoding{}, fmt.Errorf("%w: %s", ErrUnknownFormat, location)
	}
	return enc, nil
}

// Decode reads a whole dataset from r.
func Decode(r io.Reader, enc Encoding) (map[string]poi.POI, error) {
	if enc.Compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	pois := make(map[string]poi.POI)
	switch enc.Format {
	case FormatJSON:
		if err := gojson.NewDecoder(r).Decode(&pois); err != nil {
			return nil, fmt.Errorf("failed to decode json dataset: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&pois); err != nil {
			return nil, fmt.Errorf("failed to decode msgpack dataset: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, enc.Format)
	}
	return pois, nil
}

// Encode writes pois in the given encoding. It is the inverse of Decode.
func Encode(w io.Writer, pois map[string]poi.POI, enc Encoding) (err error) {
	if enc.Compressed {
		zw, zerr := zstd.NewWriter(w)
		if zerr != nil {
			return fmt.Errorf("failed to open zstd writer: %w", zerr)
		}
		defer func() {
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}()
		w = zw
	}

	switch enc.Format {
	case FormatJSON:
		return gojson.NewEncoder(w).Encode(pois)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(pois)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, enc.Format)
	}
}
