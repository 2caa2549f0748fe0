package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/file"
)

var (
	mu     sync.Mutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Init points the debug logger at the given file.
func Init(path string) error {
	if err := file.CreateParentDirectory(path); err != nil {
		return errors.Wrap(err, "creating debug log directory")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return errors.Wrap(err, "opening debug log")
	}
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	return nil
}

// GetLogger returns the shared slog logger. Logs are discarded until Init is called.
func GetLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}
