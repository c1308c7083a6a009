package files

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/grabberapp/grabber/pkg/logger"
	"github.com/rjeczalik/notify"
)

var janitorLog = logger.Get("Janitor")

type (
	JanitorConfig struct {
		// OrphanTTL is how long a stored file may sit in the download
		// folder without being fetched before the janitor removes it.
		OrphanTTL time.Duration `yaml:"orphan_ttl" env:"ORPHAN_TTL" env-default:"30m"`

		// SweepInterval controls how often the folder is checked for
		// expired files.
		SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"5m"`
	}

	// Janitor removes orphaned downloads: files which were produced by an
	// orchestration run but never fetched (and therefore never cleaned up
	// by the serving path). It watches the download folder for new files
	// and sweeps out anything older than the configured TTL.
	Janitor struct {
		config JanitorConfig
		folder string
	}
)

func NewJanitor(config JanitorConfig, downloadFolder string) *Janitor {
	return &Janitor{config: config, folder: downloadFolder}
}

// Run watches the download folder and performs periodic sweeps until the
// provided context is cancelled. File system events only trigger logging;
// expiry is always judged from the file's modification time so that files
// present before startup are swept too.
func (janitor *Janitor) Run(ctx context.Context) error {
	fsNotifyChannel := make(chan notify.EventInfo, 16)
	if err := notify.Watch(janitor.folder, fsNotifyChannel, notify.Create); err != nil {
		janitorLog.Emit(logger.WARNING, "Failed to watch download folder %s (%v), relying on sweeps only\n", janitor.folder, err)
	} else {
		defer notify.Stop(fsNotifyChannel)
	}

	sweepTicker := time.NewTicker(janitor.config.SweepInterval)
	defer sweepTicker.Stop()

	janitor.Sweep()
	for {
		select {
		case event := <-fsNotifyChannel:
			janitorLog.Emit(logger.VERBOSE, "Observed new download %s\n", event.Path())
		case <-sweepTicker.C:
			janitor.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep removes every regular file in the download folder whose
// modification time is older than the orphan TTL.
func (janitor *Janitor) Sweep() {
	entries, err := os.ReadDir(janitor.folder)
	if err != nil {
		janitorLog.Emit(logger.WARNING, "Failed to scan download folder %s: %v\n", janitor.folder, err)
		return
	}

	cutoff := time.Now().Add(-janitor.config.OrphanTTL)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(janitor.folder, entry.Name())
		if err := os.Remove(path); err != nil {
			janitorLog.Emit(logger.WARNING, "Failed to remove orphaned download %s: %v\n", path, err)
			continue
		}

		janitorLog.Emit(logger.REMOVE, "Removed orphaned download %s\n", path)
	}
}
