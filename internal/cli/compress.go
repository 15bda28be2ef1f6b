package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexd/cortexd/internal/compress"
	"github.com/cortexd/cortexd/internal/daemon"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func init() {
	compressCmd.AddCommand(compressRunCmd)
	compressRunCmd.Flags().StringVar(&compressDomain, "domain", "", "domain to compress (required)")
	_ = compressRunCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(compressCmd)
}

var compressDomain string

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Run or inspect knowledge-compression passes",
}

var compressRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Force an off-schedule compression pass for a domain",
	RunE:  runCompressRun,
}

func runCompressRun(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	finder := compress.NewClusterFinder(compress.ClusterConfig{
		MinMembers:       cfg.Compression.MinClusterMembers,
		MaxMembers:       cfg.Compression.MaxClusterMembers,
		MinAvgSimilarity: cfg.Compression.MinAvgSimilarity,
	})
	distiller := compress.NewDistiller(compress.TemplateClient{}, cfg.Compression.MinCompressionRatio)
	archiver := compress.NewArchiver(st)
	compressor := compress.NewCompressor(st, finder, distiller, archiver)

	report, err := compressor.Run(context.Background(), compressDomain)
	if err != nil {
		return err
	}

	fmt.Println(report.Summary())
	if len(report.Refusals) > 0 {
		fmt.Println("refusals:")
		for _, r := range report.Refusals {
			fmt.Println(" -", r)
		}
	}
	return nil
}
