package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/dustin/go-humanize"
)

// Convert loads source and writes it to out, in the encoding named by out's
// extension. out is replaced only when the whole dataset was written.
func (l *Loader) Convert(ctx context.Context, source, out string) (*Dataset, error) {
	enc, err := DetectEncoding(out)
	if err != nil {
		return nil, err
	}
	ds, err := l.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(out)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, ds.POIs, enc); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("encoding %s: %w", out, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return nil, err
	}

	l.log.Infof("Converted %s (%s, %s) to %s (%s, %s)",
		ds.Source, ds.Encoding, humanize.Bytes(uint64(ds.Size)), out, enc, humanize.Bytes(uint64(info.Size())))
	return ds, nil
}
