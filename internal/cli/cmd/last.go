package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/ipc"
	"github.com/berrythewa/ezpaste-daemon/internal/storage"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
	"github.com/berrythewa/ezpaste-daemon/pkg/format"
)

func newLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the most recently published screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := lastRecord()
			if err != nil {
				return err
			}
			if useJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			return format.WriteRecord(cmd.OutOrStdout(), rec, format.DefaultOptions())
		},
	}
}

// lastRecord asks the running daemon, which holds the database lock, and
// falls back to reading the database directly. A nil record means nothing
// was published yet.
func lastRecord() (*types.Record, error) {
	resp, err := ipc.Send(cfg.SystemPaths.SocketFile, ipc.CmdLast)
	if err == nil {
		return recordFrom(resp)
	}
	logger.Debug("Daemon not reachable, reading database", zap.Error(err))

	if _, err := os.Stat(cfg.SystemPaths.DBFile); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	db, err := storage.NewBoltStorage(storage.StorageConfig{
		DBPath:   cfg.SystemPaths.DBFile,
		DeviceID: cfg.DeviceID,
		Logger:   logger,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rec, err := db.Latest()
	if errors.Is(err, storage.ErrNoRecord) {
		return nil, nil
	}
	return rec, err
}

func recordFrom(resp *ipc.Response) (*types.Record, error) {
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	var rec types.Record
	if err := resp.Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
