package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexd/cortexd/internal/daemon"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/cortexd/cortexd/internal/runbook"
)

func init() {
	runbookCmd.AddCommand(runbookStatusCmd)
	rootCmd.AddCommand(runbookCmd)
}

var runbookCmd = &cobra.Command{
	Use:   "runbook",
	Short: "Inspect runbook graduation state",
}

var runbookStatusCmd = &cobra.Command{
	Use:   "status <definition-id>",
	Short: "Show a runbook's dry-run/live graduation stats",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunbookStatus,
}

func runRunbookStatus(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := runbook.NewRegistry(st, runbook.DefaultDefinitions())
	stats, err := reg.Stats(args[0])
	if err != nil {
		return err
	}

	body, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
