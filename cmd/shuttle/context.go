package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/pipeline"
	"shuttle/internal/services"
	"shuttle/internal/services/deadline"
	"shuttle/internal/services/oiio"
	"shuttle/internal/services/shotgrid"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	// Test seams. When set, the lazily constructed clients are skipped.
	sgOverride        shotgrid.Session
	farmOverride      deadline.Submitter
	storeOverride     *pipeline.Store
	converterOverride oiio.Converter
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.config != nil {
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		if c.logger != nil {
			return
		}
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openStore() (*pipeline.Store, func(), error) {
	if c.storeOverride != nil {
		return c.storeOverride, func() {}, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := pipeline.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func (c *commandContext) trackingSession() (shotgrid.Session, error) {
	if c.sgOverride != nil {
		return c.sgOverride, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return shotgrid.New(cfg.Shotgrid.URL, cfg.Shotgrid.ScriptName, cfg.Shotgrid.APIKey)
}

func (c *commandContext) farmSubmitter() (deadline.Submitter, error) {
	if c.farmOverride != nil {
		return c.farmOverride, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return deadline.New(cfg.Deadline.URL)
}

func (c *commandContext) converter() (oiio.Converter, error) {
	if c.converterOverride != nil {
		return c.converterOverride, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return oiio.NewCLI(oiio.WithBinary(cfg.Transcode.OiiotoolBinary)), nil
}

// beginRun takes the single-operator run lock and stamps the context with
// a fresh run id. The returned release function must be called when the
// run finishes.
func (c *commandContext) beginRun(ctx context.Context) (context.Context, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "shuttle.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, nil, errors.New("another shuttle run is already in progress")
	}

	ctx = services.WithRunID(ctx, uuid.NewString())
	return ctx, func() { _ = lock.Unlock() }, nil
}
