package index

import "github.com/bastiangx/poiserve/pkg/dataset"

// FromDataset builds a new index over a loaded dataset.
func FromDataset(ds *dataset.Dataset, opts ...Option) (*Index, []error) {
	ix := New(opts...)
	warnings := ix.BuildMap(ds.POIs)
	ix.log.Debugf("Built index from %s (%s)", ds.Source, ds.Encoding)
	return ix, warnings
}
