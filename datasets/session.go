package datasets

import (
	"path/filepath"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/Noofbiz/ppmlDatasets/stats"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Session holds the partitions of one dataset, from loading through
// splitting and preparation, along with the statistics computed on them.
//
// A Session is not safe for concurrent use.
type Session struct {
	id    string
	cfg   Config
	parts Partitions

	// distribution caches the class distribution of the train partition.
	distribution *stats.Distribution
	info         *Info
}

// NewSession validates cfg and creates an empty session. Partitions are
// only available after Load.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Seed = cfg.EffectiveSeed()
	if cfg.Catalog == nil {
		cfg.Catalog = DirCatalog{Channels: cfg.sourceChannels()}
	}
	return &Session{
		id:    uuid.NewString(),
		cfg:   cfg,
		parts: make(Partitions),
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Config returns the configuration with defaults resolved.
func (s *Session) Config() Config { return s.cfg }

// Partition returns the partition of the given kind, or nil if absent.
func (s *Session) Partition(kind Kind) *partition.Partition { return s.parts[kind] }

// SetPartition replaces (or with nil, removes) the partition of the given kind.
func (s *Session) SetPartition(kind Kind, p *partition.Partition) {
	if p == nil {
		delete(s.parts, kind)
	} else {
		s.parts[kind] = p
	}
	if kind == Train {
		s.distribution = nil
	}
}

// Info returns the last Info record built, or nil.
func (s *Session) Info() *Info { return s.info }

// Load loads the raw partitions, from Config.Loader if set, otherwise from
// Config.Catalog when Config.FromCatalog is set. With neither, it only logs
// a warning and leaves the partitions unset.
//
// filter, if not nil, selects the samples kept. Every loaded partition is
// then counted, so it carries an exact cardinality.
func (s *Session) Load(filter FilterFunc) error {
	klog.Infof("Loading %s (session %s)", s.cfg.Name, s.id)
	var (
		parts Partitions
		err   error
	)
	switch {
	case s.cfg.Loader != nil:
		parts, err = s.cfg.Loader.Load(s.cfg)
	case s.cfg.FromCatalog:
		dir := ""
		if s.cfg.Path != "" {
			dir = filepath.Join(s.cfg.Path, s.cfg.Name)
		}
		parts, err = s.cfg.Catalog.Lookup(s.cfg.Name, dir)
	default:
		klog.Warningf("Cannot load dataset %s from the catalog since it is not a catalog dataset, and no loader is configured", s.cfg.Name)
		return nil
	}
	if err != nil {
		return errors.WithMessagef(err, "loading dataset %s", s.cfg.Name)
	}

	for _, kind := range []Kind{Train, Validation, Test} {
		p := parts[kind]
		if p == nil {
			s.SetPartition(kind, nil)
			continue
		}
		p = p.WithName(kind.String())
		if filter != nil {
			p = p.Filter(filter)
		}
		p, err = p.Recount()
		if err != nil {
			return errors.WithMessagef(err, "loading dataset %s", s.cfg.Name)
		}
		s.SetPartition(kind, p)
		klog.Infof("Loaded %s partition of %s: %s samples", kind, s.cfg.Name, p.NumSamples())
	}
	delete(s.parts, AttackTrain)
	delete(s.parts, AttackTest)

	if s.cfg.BuildsInfo {
		if _, err := s.BuildInfo(); err != nil {
			return err
		}
	}
	return nil
}

// partitionOrTrain resolves a nil partition to the train partition.
func (s *Session) partitionOrTrain(p *partition.Partition) (*partition.Partition, error) {
	if p != nil {
		return p, nil
	}
	if train := s.parts[Train]; train != nil {
		return train, nil
	}
	return nil, errors.Wrapf(ErrNoData, "no %s partition", Train)
}

// Arrays returns the images and labels of the partition of the given kind,
// unbatched and in order.
func (s *Session) Arrays(kind Kind) ([]imageops.Image, []int, error) {
	p := s.parts[kind]
	if p == nil {
		return nil, nil, errors.Wrapf(ErrNoData, "no %s partition", kind)
	}
	samples, err := partition.Collect(p)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "reading %s partition", kind)
	}
	images := make([]imageops.Image, len(samples))
	labels := make([]int, len(samples))
	for i, sample := range samples {
		images[i] = sample.Image
		labels[i] = sample.Label
	}
	return images, labels, nil
}
