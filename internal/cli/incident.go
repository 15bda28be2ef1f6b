package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexd/cortexd/internal/daemon"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/incident"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func init() {
	incidentCmd.AddCommand(incidentListCmd)
	incidentCmd.AddCommand(incidentDismissCmd)
	incidentListCmd.Flags().BoolVar(&incidentActiveOnly, "active", false, "show only non-terminal incidents")
	rootCmd.AddCommand(incidentCmd)
}

var incidentActiveOnly bool

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Inspect and manage incidents",
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents",
	RunE:  runIncidentList,
}

var incidentDismissCmd = &cobra.Command{
	Use:   "dismiss <anomaly-type> <target-id>",
	Short: "Suppress further detections for an anomaly/target pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runIncidentDismiss,
}

func withIncidentManager(fn func(*incident.Manager) error) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := incident.New(st, incident.DefaultConfig())
	return fn(mgr)
}

func runIncidentList(cmd *cobra.Command, args []string) error {
	return withIncidentManager(func(mgr *incident.Manager) error {
		incidents, err := mgr.List(incidentActiveOnly)
		if err != nil {
			return err
		}
		body, err := json.MarshalIndent(incidents, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	})
}

func runIncidentDismiss(cmd *cobra.Command, args []string) error {
	anomalyType, targetID := args[0], args[1]
	return withIncidentManager(func(mgr *incident.Manager) error {
		if err := mgr.Dismiss(domain.AnomalyType(anomalyType), targetID); err != nil {
			return err
		}
		fmt.Printf("dismissed future detections of %s on %s\n", anomalyType, targetID)
		return nil
	})
}
