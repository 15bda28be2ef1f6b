package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexd/cortexd/internal/daemon"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/cortexd/cortexd/internal/session"
)

func init() {
	sessionCmd.AddCommand(sessionPreambleCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect session preservation and restore",
}

var sessionPreambleCmd = &cobra.Command{
	Use:   "preamble",
	Short: "Print the next-session preamble for inspection",
	RunE:  runSessionPreamble,
}

func runSessionPreamble(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	preserver := session.NewPreserver(cfg.Session.Dir, st, session.Config{
		LookbackDays:       cfg.Session.LookbackDays,
		RelevanceThreshold: cfg.Session.RelevanceThreshold,
		MaxSessionsScored:  cfg.Session.MaxSessionsScored,
		MaxInheritedPins:   cfg.Session.MaxInheritedPins,
		DecayMinFloor:      cfg.Session.DecayMinFloor,
	})

	_, preamble, err := preserver.Restore(nil)
	if err != nil {
		return err
	}
	if preamble == "" {
		fmt.Println("(no inheritable prior session context)")
		return nil
	}
	fmt.Println(preamble)
	return nil
}
