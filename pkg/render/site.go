package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/spinner"
)

// SiteOptions configures static site generation.
type SiteOptions struct {
	// Workers bounds the number of layers rendered concurrently.
	// Zero uses GOMAXPROCS.
	Workers int

	Title        string
	HeatmapScale float32
	IndexTopK    int

	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// GenerateSite writes a browsable site for pl into dir:
//
//	index.html
//	static/style.css
//	L{layer}/N{neuron}.html
func GenerateSite(ctx context.Context, dir string, pl *payload.Payload, opts SiteOptions) error {
	pages := NewPages(FileLinks, opts.Title, opts.HeatmapScale)
	pages.IndexTopK = opts.IndexTopK

	if err := os.MkdirAll(filepath.Join(dir, "static"), 0755); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to create site directory").
			WithContext("path", dir)
	}
	if err := writeFile(filepath.Join(dir, "static", "style.css"), func(w io.Writer) error {
		_, err := w.Write(Stylesheet())
		return err
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "index.html"), func(w io.Writer) error {
		return pages.Index(w, pl)
	}); err != nil {
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > pl.NumLayers() {
		workers = pl.NumLayers()
	}

	var progress *spinner.ProgressBar
	if opts.Progress != nil {
		progress = spinner.NewProgressWithConfig(spinner.ProgressConfig{
			Total:   pl.NumLayers(),
			Message: "Generating layers",
			Writer:  opts.Progress,
		})
		progress.Start()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	layers := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range layers {
				if err := generateLayer(ctx, dir, pages, pl, l); err != nil {
					fail(err)
					continue
				}
				if progress != nil {
					progress.Increment()
				}
			}
		}()
	}

feed:
	for l := 0; l < pl.NumLayers(); l++ {
		select {
		case layers <- l:
		case <-ctx.Done():
			break feed
		}
	}
	close(layers)
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if progress != nil {
		if firstErr != nil {
			progress.Fail("Site generation failed")
		} else {
			progress.Complete(fmt.Sprintf("Generated %d pages in %s", pl.NumLayers()*pl.NumMLPNeurons(), dir))
		}
	}
	if firstErr != nil {
		return firstErr
	}
	log.Printf("[site] wrote %d layers to %s", pl.NumLayers(), dir)
	return nil
}

func generateLayer(ctx context.Context, dir string, pages *Pages, pl *payload.Payload, layer int) error {
	layerDir := filepath.Join(dir, fmt.Sprintf("L%d", layer))
	if err := os.MkdirAll(layerDir, 0755); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to create layer directory").
			WithContext("path", layerDir)
	}
	for n := 0; n < pl.NumMLPNeurons(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(layerDir, fmt.Sprintf("N%d.html", n))
		if err := writeFile(path, func(w io.Writer) error {
			return pages.Neuron(w, pl, layer, n)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to create file").
			WithContext("path", path)
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write file").
			WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to close file").
			WithContext("path", path)
	}
	return nil
}
