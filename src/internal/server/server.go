package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/library"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "server"})

// Run implements the main control loop: it scans the music directory once at
// startup, rescans in the configured interval and stops on SIGINT/SIGTERM.
// cfgPath is the path of the configuration file
func Run(version, cfgPath string) (err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		err = errors.Wrap(err, "cannot run musicapp")
		return
	}
	if err = cfg.Validate(); err != nil {
		err = errors.Wrap(err, "cannot run musicapp")
		return
	}

	// set up logging: no log entries possible before this statement!
	if err = setupLogging(cfg.LogDir, cfg.LogLevel); err != nil {
		err = errors.Wrap(err, "cannot run musicapp")
		return
	}

	log.Infof("musicapp %s running ...", version)

	svc, err := library.NewService(&cfg)
	if err != nil {
		err = errors.Wrap(err, "cannot run musicapp")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initial scan
	if err = svc.Scan(ctx); err != nil {
		err = errors.Wrap(err, "cannot run musicapp")
		return
	}

	// preparation to receive OS signals (e.g. from 'systemctl stop ...')
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var rescan <-chan time.Time
	if cfg.CacheRefreshIntervalHours > 0 {
		ticker := time.NewTicker(time.Duration(cfg.CacheRefreshIntervalHours) * time.Hour)
		defer ticker.Stop()
		rescan = ticker.C
	}

	for {
		select {
		case sig := <-interrupt:
			log.Infof("signal received: %v, stopping ...", sig)
			cancel()
			return nil

		case <-rescan:
			log.Info("periodic rescan ...")
			svc.TriggerScan(ctx)
		}
	}
}

// Scan performs one scan of the music directory and writes the resulting
// library status to stdout
func Scan(cfgPath string) (err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	if err = setupLogging(cfg.LogDir, cfg.LogLevel); err != nil {
		return
	}

	svc, err := library.NewService(&cfg)
	if err != nil {
		return
	}
	if err = svc.Scan(context.Background()); err != nil {
		return
	}

	svc.WriteStatus(os.Stdout)
	return
}
