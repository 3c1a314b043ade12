package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/MapVault/internal/config"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:           "mapvault",
	Short:         "Import, inspect and search rhythm game maps",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetLevel(logger.ParseLevel(v.GetString("server.log_level")))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "", "Path to the SQLite database file")
	flags.String("backend", "", "Content store backend (sqlite or blob)")
	flags.String("blob-url", "", "Bucket URL for the blob backend (file:///dir, mem://, s3://bucket)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("catalog", "", "Remote catalog base URL")

	// unset flags fall through to env, config file and defaults
	_ = v.BindPFlag("storage.db_path", flags.Lookup("db"))
	_ = v.BindPFlag("storage.backend", flags.Lookup("backend"))
	_ = v.BindPFlag("storage.blob_url", flags.Lookup("blob-url"))
	_ = v.BindPFlag("server.log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("catalog.url", flags.Lookup("catalog"))
}

// createService creates a new MapVault service from flags, env and config file
func createService(opts ...mapvault.Option) (mapvault.Service, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	opts = append(cfg.ServiceOptions(logger.GetLogger()), opts...)
	return mapvault.NewService(opts...)
}

func printBanner() {
	banner := `
 __  __             __     __          _ _
|  \/  | __ _ _ __  \ \   / /_ _ _   _| | |_
| |\/| |/ _' | '_ \  \ \ / / _' | | | | | __|
| |  | | (_| | |_) |  \ V / (_| | |_| | | |_
|_|  |_|\__,_| .__/    \_/ \__,_|\__,_|_|\__|
             |_|
         Rhythm Map Library CLI
`
	fmt.Println(banner)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}
