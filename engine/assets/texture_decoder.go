// Package assets loads engine assets from disk or memory: textures are decoded in parallel on a
// worker pool, and WGSL shader directories are read into named include modules.
package assets

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-xr/common"

	// Extra image formats beyond the stdlib png/jpeg decoders registered by common.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// textureDecoder is the implementation of the TextureDecoder interface.
type textureDecoder struct {
	pool   worker.DynamicWorkerPool
	logger common.Logger
}

// TextureDecoder decodes image sources into RGBA staging data in parallel.
type TextureDecoder interface {
	// DecodeAll decodes every source, one pool task per image, and blocks until all finish.
	//
	// Parameters:
	//   - sources: the images to decode
	//
	// Returns:
	//   - []common.TextureStagingData: the decoded images, in input order
	//   - error: the error of the first source that failed, in input order
	DecodeAll(sources []common.TextureSource) ([]common.TextureStagingData, error)

	// Close stops the worker pool.
	Close()
}

var _ TextureDecoder = &textureDecoder{}

// NewTextureDecoder creates a TextureDecoder backed by a worker pool.
//
// Parameters:
//   - workers: the maximum number of concurrent decodes; values below 1 use runtime.NumCPU()
//   - options: optional builder options
//
// Returns:
//   - TextureDecoder: the decoder
func NewTextureDecoder(workers int, options ...TextureDecoderBuilderOption) TextureDecoder {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	d := &textureDecoder{
		pool:   worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		logger: common.NewNopLogger(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *textureDecoder) DecodeAll(sources []common.TextureSource) ([]common.TextureStagingData, error) {
	results := make([]common.TextureStagingData, len(sources))
	errs := make([]error, len(sources))

	// pool.Wait() only returns once workers idle out, so the batch joins on its own WaitGroup.
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: src.Name,
			Do: func() (any, error) {
				defer wg.Done()
				results[i], errs[i] = src.Decode()
				return nil, errs[i]
			},
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to decode texture %q: %w", sources[i].Name, err)
		}
	}
	d.logger.Debugf("decoded %d textures", len(sources))
	return results, nil
}

func (d *textureDecoder) Close() {
	d.pool.Stop()
}
