package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerlite/ledgerlite/internal/cli"
	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/coordinator"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/remote"
	"github.com/ledgerlite/ledgerlite/internal/service"
	"github.com/ledgerlite/ledgerlite/internal/storage"
	syncengine "github.com/ledgerlite/ledgerlite/internal/sync"
)

// app bundles the wired components a command needs.
type app struct {
	storage     *storage.SQLiteStorage
	coordinator *coordinator.Coordinator
	probe       *remote.Probe
}

func (a *app) close() {
	if a.coordinator != nil {
		a.coordinator.Close()
	}
	if a.probe != nil {
		a.probe.Stop()
	}
	_ = a.storage.Close()
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "ledgerlite", "ledger.db"), nil
}

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		var err error
		dbPath, err = defaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// buildApp wires storage, remote client, connectivity probe, sync engine and
// coordinator from config. Without a configured remote URL the app runs in
// permanent-offline mode: everything works locally and sync is deferred.
func buildApp(ctx context.Context) (*app, error) {
	store, err := openStorage(ctx)
	if err != nil {
		return nil, err
	}

	var remoteStore service.RemoteStore
	var connectivity service.Connectivity
	var probe *remote.Probe

	remoteURL := viper.GetString("remote.url")
	if remoteURL != "" {
		client, err := remote.NewClient(remoteURL, viper.GetString("remote.token"))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		remoteStore = client
		probe = remote.NewProbe(client, viper.GetDuration("remote.probe_interval"))
		probe.Start(ctx)
		connectivity = probe
	} else {
		remoteStore = disabledRemote{}
		connectivity = offlineConnectivity{}
	}

	engine := syncengine.New(store, remoteStore, connectivity, service.RetryOptions{})

	coord := coordinator.New(store, engine, connectivity, staticIdentity{}, cli.NewNotifier(), coordinator.Config{
		AutoSync: viper.GetBool("sync.auto"),
		Cooldown: viper.GetDuration("sync.cooldown"),
	})

	return &app{storage: store, coordinator: coord, probe: probe}, nil
}

// staticIdentity resolves the user from config; the auth provider itself is
// an external collaborator.
type staticIdentity struct{}

func (staticIdentity) CurrentUserID() string {
	if id := viper.GetString("user.id"); id != "" {
		return id
	}
	return model.LocalUserID
}

func (staticIdentity) Subscribe(func(userID string)) func() {
	return func() {}
}

// offlineConnectivity is the no-remote fallback.
type offlineConnectivity struct{}

func (offlineConnectivity) Online() bool                       { return false }
func (offlineConnectivity) Subscribe(func(online bool)) func() { return func() {} }

// disabledRemote rejects every call; it is unreachable while connectivity
// reports offline.
type disabledRemote struct{}

func (disabledRemote) UpsertBatch(context.Context, []service.RemoteDocument) error {
	return fmt.Errorf("%w: remote.url", common.ErrMissingConfig)
}

func (disabledRemote) Delete(context.Context, string, string) error {
	return fmt.Errorf("%w: remote.url", common.ErrMissingConfig)
}

func (disabledRemote) Query(context.Context, string, string, int) ([]service.RemoteDocument, error) {
	return nil, fmt.Errorf("%w: remote.url", common.ErrMissingConfig)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want RFC3339 or YYYY-MM-DD)", value)
}
