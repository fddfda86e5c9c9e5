package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/fsnotify/fsnotify"
)

// ShaderChangeFunc receives the module name and new source of a changed shader file.
type ShaderChangeFunc func(name, source string)

// ShaderWatcher watches a shader directory tree and reports changed .wgsl files.
type ShaderWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	onChange ShaderChangeFunc
	logger   common.Logger
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewShaderWatcher starts watching dir and every directory below it. onChange runs on the watcher
// goroutine.
//
// Parameters:
//   - dir: the shader root on disk
//   - onChange: called with the module name and source of each written or created shader
//   - logger: receives reload and read failures; nil uses a nop logger
//
// Returns:
//   - *ShaderWatcher: the running watcher
//   - error: error if the watcher cannot be created or a directory cannot be added
func NewShaderWatcher(dir string, onChange ShaderChangeFunc, logger common.Logger) (*ShaderWatcher, error) {
	if logger == nil {
		logger = common.NewNopLogger()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch shader directory %q: %w", dir, err)
	}

	sw := &ShaderWatcher{
		root:     dir,
		watcher:  w,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.run()
	return sw, nil
}

func (sw *ShaderWatcher) run() {
	defer sw.wg.Done()
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(event.Name) != ShaderExt {
				continue
			}
			sw.reload(event.Name)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Errorf("shader watcher: %v", err)
		}
	}
}

func (sw *ShaderWatcher) reload(file string) {
	rel, err := filepath.Rel(sw.root, file)
	if err != nil {
		sw.logger.Errorf("shader watcher: %v", err)
		return
	}
	data, err := os.ReadFile(file)
	if err != nil {
		sw.logger.Errorf("shader watcher: failed to read %s: %v", file, err)
		return
	}

	name := ModuleName(filepath.ToSlash(rel))
	sw.logger.Infof("shader %s changed, reloading", name)
	sw.onChange(name, string(data))
}

// Close stops the watcher and waits for its goroutine to exit. It is safe to call more than once.
func (sw *ShaderWatcher) Close() error {
	var err error
	sw.once.Do(func() {
		close(sw.done)
		err = sw.watcher.Close()
		sw.wg.Wait()
	})
	return err
}
