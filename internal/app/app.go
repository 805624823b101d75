// Package app wires configuration, storage, the remote client and the
// services into the one-shot sync runner used by cmd/orcafacil-sync.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/orcafacil/internal/client"
	"github.com/dmitrijs2005/orcafacil/internal/config"
	"github.com/dmitrijs2005/orcafacil/internal/filex"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/reports"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/repomanager"
	"github.com/dmitrijs2005/orcafacil/internal/services"
	"github.com/dmitrijs2005/orcafacil/internal/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *storage.Store
	client  client.Client
	sync    *services.SyncService
	reports *reports.Engine
	ownerID string
	out     io.Writer
}

// Summary is what Run prints: the sync outcome and the dashboard computed
// after it. SyncError is set when the remote was unreachable or failed.
type Summary struct {
	Owner     string               `json:"owner"`
	Sync      *services.SyncResult `json:"sync,omitempty"`
	SyncError string               `json:"sync_error,omitempty"`
	Dashboard *reports.Dashboard   `json:"dashboard"`
}

// NewApp opens the store, brings it to the current schema, hands records
// without an owner to the configured owner and connects the client selected
// by cfg.Transport. The returned App owns both and must be closed.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger, out io.Writer) (*App, error) {
	ownerID := c.OwnerID
	if ownerID == "" && c.AccessToken != "" {
		id, err := client.OwnerFromToken(c.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to read owner from token: %w", err)
		}
		ownerID = id
	}
	if ownerID == "" {
		return nil, errors.New("owner id is not configured and no access token is set")
	}

	if _, err := filex.EnsureParentDir(c.DBPath); err != nil {
		return nil, err
	}

	st, err := storage.Open(ctx, storage.FileDSN(c.DBPath), logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	apiClient, err := newClient(c)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	repos := repomanager.NewSQLiteRepositoryManager(st)

	budgetSvc := services.NewBudgetService(st.DB(), repos, logger)
	if _, _, err := budgetSvc.ClaimOwnerless(ctx, ownerID); err != nil {
		_ = apiClient.Close()
		_ = st.Close()
		return nil, err
	}

	return &App{
		config:  c,
		logger:  logger,
		store:   st,
		client:  apiClient,
		sync:    services.NewSyncService(st.DB(), repos, apiClient, logger, c.RemoteTimeout),
		reports: reports.NewEngine(st.DB(), reports.WithRecentLimit(c.RecentLimit), reports.WithLogger(logger)),
		ownerID: ownerID,
		out:     out,
	}, nil
}

func newClient(c *config.Config) (client.Client, error) {
	switch c.Transport {
	case config.TransportGRPC:
		return client.NewGRPCClient(client.GRPCOptions{
			Target:      c.RemoteURL,
			APIKey:      c.APIKey,
			AccessToken: c.AccessToken,
		})
	default:
		return client.NewHTTPClient(client.HTTPOptions{
			BaseURL:     c.RemoteURL,
			APIKey:      c.APIKey,
			AccessToken: c.AccessToken,
		})
	}
}

// Run syncs once when the remote answers a ping and then writes the Summary
// as JSON. Remote failures are reported in the summary, not returned: local
// data stays usable offline.
func (a *App) Run(ctx context.Context) error {
	sum := &Summary{Owner: a.ownerID}

	pingCtx, cancel := context.WithTimeout(ctx, a.config.RemoteTimeout)
	err := a.client.Ping(pingCtx)
	cancel()

	if err != nil {
		a.logger.Warn(ctx, "remote unreachable, skipping sync", "error", err)
		sum.SyncError = err.Error()
	} else {
		res, err := a.sync.Sync(ctx, a.ownerID)
		sum.Sync = res
		if err != nil {
			sum.SyncError = err.Error()
		}
	}

	dash, err := a.reports.Dashboard(ctx, a.ownerID)
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}
	sum.Dashboard = dash

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// Close releases the client and the store.
func (a *App) Close() error {
	return errors.Join(a.client.Close(), a.store.Close())
}
