package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/daemon"
	"github.com/berrythewa/ezpaste-daemon/internal/ipc"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
	"github.com/berrythewa/ezpaste-daemon/pkg/format"
)

func newCtlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running daemon",
		Long: `Control a running daemon over its local socket:
  • pause and resume screenshot monitoring
  • toggle monitoring on or off
  • show what the daemon is doing`,
	}

	for _, c := range []struct{ use, short, command string }{
		{"pause", "Pause screenshot monitoring", ipc.CmdPause},
		{"resume", "Resume screenshot monitoring", ipc.CmdResume},
		{"toggle", "Toggle screenshot monitoring", ipc.CmdToggle},
	} {
		command := c.command
		cmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := ipc.Send(cfg.SystemPaths.SocketFile, command)
				if err != nil {
					return notRunning(err)
				}
				var res daemon.ToggleResult
				if err := resp.Decode(&res); err != nil {
					return err
				}
				if useJSON {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the engine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ipc.Send(cfg.SystemPaths.SocketFile, ipc.CmdStatus)
			if err != nil {
				return notRunning(err)
			}
			var st types.EngineStatus
			if err := resp.Decode(&st); err != nil {
				return err
			}
			if useJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			return format.WriteStatus(cmd.OutOrStdout(), st, format.DefaultOptions())
		},
	})
	return cmd
}

func notRunning(err error) error {
	logger.Debug("Control socket unreachable", zap.Error(err))
	fmt.Fprintln(os.Stderr, "ezpaste does not seem to be running; start it with 'ezpaste run' or 'ezpaste daemon start'")
	return err
}
