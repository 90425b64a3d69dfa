package denialscli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/upload"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/howeyc/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// uploadFile runs path through an upload flow, printing progress to out.
func uploadFile(ctx context.Context, uploader upload.Uploader, cfg conf.Config, path string, out io.Writer) (models.Denial, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Denial{}, errors.Wrapf(err, "failed to read %s", path)
	}
	name := filepath.Base(path)

	last := -1
	flow := upload.NewFlow(uploader, cfg.SuccessDelay, upload.OnChange(func(s upload.Snapshot) {
		if s.State == upload.StateUploading && s.Progress != last {
			last = s.Progress
			fmt.Fprintf(out, "Uploading %s: %d%%\n", name, s.Progress)
		}
	}))

	advisory, err := flow.Select(upload.File{
		Name: name,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(filepath.Clean(path)) },
	})
	if err != nil {
		return models.Denial{}, err
	}
	if advisory != "" {
		fmt.Fprintln(out, advisory)
	}

	return flow.Submit(ctx)
}

// watchDir calls handle for every .zip file created in dir once it has been quiet for
// settle. Files are handled one at a time, in the order they settle. It returns when ctx
// is done.
func watchDir(ctx context.Context, dir string, settle time.Duration, handle func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := watcher.Watch(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		ready   = make(chan string, 16)
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	logger := log.Upload.WithField("watch_dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-watcher.Event:
			if ev == nil || ev.IsDelete() || ev.IsRename() {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), constants.UploadExtension) {
				continue
			}
			path := ev.Name
			mu.Lock()
			if t, ok := pending[path]; ok {
				t.Reset(settle)
			} else {
				pending[path] = time.AfterFunc(settle, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()
		case path := <-ready:
			logger.WithField("file_name", filepath.Base(path)).Info("Uploading bundle from watched directory")
			handle(path)
		case err := <-watcher.Error:
			if err != nil {
				logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Watcher error")
			}
		}
	}
}
