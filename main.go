package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hbomb79/Tome/internal"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

var log = logger.Get("Bootstrap")

var (
	configPath string
	useUPnP    bool
)

var rootCmd = &cobra.Command{
	Use:           "tome",
	Short:         "Tome catalogues a media library, extracting the metadata of every audio and video file.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the library and serve the catalog over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		tome, err := internal.New(config)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return tome.Run(ctx)
	},
	DisableFlagsInUseLine: true,
}

var probeCmd = &cobra.Command{
	Use:   "probe <file> [file...]",
	Short: "Extract and print the metadata of the files provided",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())

		extractor, err := internal.NewExtractor(config)
		if err != nil {
			return err
		}

		return probeFiles(cmd.Context(), extractor, args, cmd.OutOrStdout(), cmd.ErrOrStderr(), useUPnP)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print Tome version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "tome %s\n", version)
		return nil
	},
	DisableFlagsInUseLine: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file (environment variables are used if omitted)")
	probeCmd.Flags().BoolVar(&useUPnP, "upnp", false, "print UPnP property names instead of canonical keys")

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Emit(logger.FATAL, "%v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (internal.TomeConfig, error) {
	config := internal.TomeConfig{}
	if path == "" {
		return config, config.LoadFromEnv()
	}

	return config, config.LoadFromFile(path)
}

type filler interface {
	FillMetadata(context.Context, metadata.Target) error
}

// probeFiles extracts the metadata of each file and prints it. A file which
// cannot be probed is reported and skipped; an error is returned once all
// files have been attempted if any of them failed.
func probeFiles(ctx context.Context, extractor filler, paths []string, out io.Writer, errOut io.Writer, upnp bool) error {
	failed := 0
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		item := catalog.NewItem(path, "")
		if err := extractor.FillMetadata(ctx, item); err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", path, err)
			failed++
			continue
		}

		printItem(out, item, upnp)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be probed", failed, len(paths))
	}

	return nil
}

type named interface {
	String() string
	UPnP() string
}

func printItem(out io.Writer, item *catalog.Item, upnp bool) {
	name := func(key named) string {
		if upnp {
			return key.UPnP()
		}

		return key.String()
	}

	fmt.Fprintln(out, item.Location())
	for _, entry := range item.Metadata() {
		fmt.Fprintf(out, "  %s: %s\n", name(entry.Key), entry.Value)
	}
	for idx, res := range item.Resources() {
		for _, entry := range res.Attributes() {
			fmt.Fprintf(out, "  res[%d] %s: %s\n", idx, name(entry.Attribute), entry.Value)
		}
	}
}
