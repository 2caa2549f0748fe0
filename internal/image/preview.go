package image

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrPreviewNotFound is returned when releasing a preview that is not held.
var ErrPreviewNotFound = errors.New("preview not found")

const previewURLPrefix = "file://"

// Previews tracks the transient files backing image previews. Each preview
// must be released exactly once.
type Previews struct {
	dir string

	mutex     sync.Mutex
	urlToPath map[string]string
}

// NewPreviews returns a registry writing its files under dir, or under the
// system temporary directory if dir is empty.
func NewPreviews(dir string) *Previews {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Previews{
		dir:       dir,
		urlToPath: map[string]string{},
	}
}

// Create copies the file to a temporary location and returns its URL.
func (p *Previews) Create(f *File) (string, error) {
	reader, err := f.Open()
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", f.Name)
	}
	defer reader.Close()

	extension := strings.ToLower(filepath.Ext(f.Name))
	tmp, err := os.CreateTemp(p.dir, "madlen-preview-*"+extension)
	if err != nil {
		return "", errors.Wrap(err, "creating preview file")
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "writing preview file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "closing preview file")
	}

	url := previewURLPrefix + tmp.Name()
	p.mutex.Lock()
	p.urlToPath[url] = tmp.Name()
	p.mutex.Unlock()
	return url, nil
}

// Release deletes the file behind a preview url.
func (p *Previews) Release(url string) error {
	p.mutex.Lock()
	path, ok := p.urlToPath[url]
	delete(p.urlToPath, url)
	p.mutex.Unlock()
	if !ok {
		return ErrPreviewNotFound
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

// ReleaseAll releases every preview still held.
func (p *Previews) ReleaseAll() error {
	p.mutex.Lock()
	urls := make([]string, 0, len(p.urlToPath))
	for url := range p.urlToPath {
		urls = append(urls, url)
	}
	p.mutex.Unlock()

	var firstErr error
	for _, url := range urls {
		if err := p.Release(url); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len returns the number of previews held.
func (p *Previews) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.urlToPath)
}
