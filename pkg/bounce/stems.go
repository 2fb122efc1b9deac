package bounce

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Bojan20/reelforge/pkg/processor"
)

// Stem pairs a named source with its output path.
type Stem struct {
	Name       string
	OutputPath string
	Source     Source
}

// StemExporter renders multiple stems with a shared format and
// region, fanning the renders out across goroutines. Each stem gets
// its own renderer and processor chain, so stems never share mutable
// state.
type StemExporter struct {
	config Config
	stems  []Stem
	log    *zap.Logger

	// NewChain builds a fresh processor chain per stem; nil renders
	// without processing.
	NewChain func() *processor.Chain
}

// NewStemExporter creates an exporter using config as the template
// for every stem (OutputPath is taken from each stem).
func NewStemExporter(config Config, log *zap.Logger) *StemExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &StemExporter{config: config, log: log}
}

// AddStem queues one stem.
func (se *StemExporter) AddStem(name, outputPath string, source Source) {
	se.stems = append(se.stems, Stem{Name: name, OutputPath: outputPath, Source: source})
}

// Stems returns the queued stems.
func (se *StemExporter) Stems() []Stem {
	return se.stems
}

// ExportAll renders every stem concurrently and returns the written
// paths in stem order. A failure does not stop the other renders; the
// first error is returned once all of them have finished.
func (se *StemExporter) ExportAll() ([]string, error) {
	paths := make([]string, len(se.stems))

	var g errgroup.Group
	for i := range se.stems {
		stem := se.stems[i]
		idx := i
		g.Go(func() error {
			cfg := se.config
			cfg.OutputPath = stem.OutputPath

			var chain *processor.Chain
			if se.NewChain != nil {
				chain = se.NewChain()
			}

			path, err := NewRenderer(cfg, se.log.With(zap.String("stem", stem.Name))).
				Render(stem.Source, chain)
			if err != nil {
				return err
			}
			paths[idx] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
