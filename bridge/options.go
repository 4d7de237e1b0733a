package bridge

import (
	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/linalg"
)

type options struct {
	rowSubset, colSubset *dofs.Subset
	rowMap, colMap       *VecMap
	matType              linalg.MatType
	logger               *Logger
	observer             Observer
}

// Option configures facades and vector maps
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{logger: NoopLogger(), observer: NoopObserver{}}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithSubsets restricts the domain (row) and range (column) dofs
func WithSubsets(row, col *dofs.Subset) Option {
	return func(o *options) { o.rowSubset, o.colSubset = row, col }
}

// WithFreeDofs uses the same subset for both axes
func WithFreeDofs(free *dofs.Subset) Option {
	return WithSubsets(free, free)
}

// WithRowMap reuses an existing map for the domain vectors
func WithRowMap(m *VecMap) Option {
	return func(o *options) { o.rowMap = m }
}

// WithColMap reuses an existing map for the range vectors
func WithColMap(m *VecMap) Option {
	return func(o *options) { o.colMap = m }
}

// WithMatType converts a materialized matrix to t after it is built
func WithMatType(t linalg.MatType) Option {
	return func(o *options) { o.matType = t }
}

func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
