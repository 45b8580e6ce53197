package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/client/workspace"
	"github.com/openmined/syftdrop/internal/dropsdk"
	"github.com/openmined/syftdrop/internal/transfer"
	"golang.org/x/sync/errgroup"
)

type ClientDaemon struct {
	config *config.Config
	ws     *workspace.Workspace
	sdk    *dropsdk.DropSDK
	mgr    *Manager
	cps    *ControlPlaneServer
}

func NewClientDaemon(cfg *config.Config) (*ClientDaemon, error) {
	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sdk, err := dropsdk.New(&dropsdk.DropSDKConfig{BaseURL: cfg.ServerURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	return newClientDaemon(cfg, ws, sdk, sdk.Transfers)
}

func newClientDaemon(cfg *config.Config, ws *workspace.Workspace, sdk *dropsdk.DropSDK, api transfer.API) (*ClientDaemon, error) {
	store, err := transfer.NewFileSnapshotStore(ws.SnapshotsDir)
	if err != nil {
		return nil, err
	}

	opts := transfer.DefaultOptions()
	opts.ChunkSize = cfg.ChunkSize
	opts.Concurrency = cfg.Concurrency
	opts.Retry = cfg.Retry
	opts.Store = store
	mgr := NewManager(api, opts)

	cps, err := NewControlPlaneServer(&ControlPlaneConfig{
		Addr:      cfg.ClientAddr,
		AuthToken: cfg.ClientToken,
	}, mgr)
	if err != nil {
		return nil, err
	}

	return &ClientDaemon{
		config: cfg,
		ws:     ws,
		sdk:    sdk,
		mgr:    mgr,
		cps:    cps,
	}, nil
}

func (c *ClientDaemon) Start(ctx context.Context) error {
	slog.Info("client daemon start", "config", c.config)

	if err := c.ws.Setup(); err != nil {
		return fmt.Errorf("failed to setup workspace: %w", err)
	}

	if err := c.mgr.Start(ctx); err != nil {
		c.ws.Unlock()
		return fmt.Errorf("failed to start transfer manager: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := c.cps.Start(egCtx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return c.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

// Stop closes the control plane, pauses in-flight uploads so they stay resumable, and
// releases the workspace
func (c *ClientDaemon) Stop(ctx context.Context) error {
	var errs []error
	if err := c.cps.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop control plane: %w", err))
	}

	c.mgr.Stop()

	if c.sdk != nil {
		c.sdk.Close()
	}
	if err := c.ws.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
