package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
	"github.com/himanishpuri/MapVault/pkg/mapvault/ingest"
	"github.com/himanishpuri/MapVault/pkg/mapvault/search"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

var importCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Import map files and directories of map files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()
		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("📭 No map files found")
			return nil
		}

		fmt.Println("🔧 Initializing service...")
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		fmt.Printf("📥 Importing %d file(s)...\n", len(paths))
		report := svc.ImportFiles(cmd.Context(), paths)
		printReport(report)
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d file(s) failed", len(report.Failed))
		}
		return nil
	},
}

// expandPaths replaces directories by the map files they contain.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := ingest.FindMaps(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func printReport(report *ingest.Report) {
	fmt.Printf("\n✅ Imported %d map(s)\n", len(report.Imported))
	for _, rec := range report.Imported {
		fmt.Printf("   %s  %s\n", rec.ID, rec.Title)
	}
	if len(report.Failed) > 0 {
		fmt.Printf("\n❌ %d failed:\n", len(report.Failed))
		for path, err := range report.Failed {
			fmt.Printf("   %s: %v\n", path, err)
		}
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored maps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx := cmd.Context()
		ids, err := svc.Keys(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("\n📭 No maps in library")
			return nil
		}

		fmt.Printf("\n📚 Library (%d maps):\n\n", len(ids))
		fmt.Printf("%-28s %-36s %-10s %6s %8s\n", "ID", "Title", "Difficulty", "Stars", "Length")
		fmt.Println(strings.Repeat("-", 92))
		for _, id := range ids {
			rec, err := svc.Record(ctx, id)
			if err != nil {
				fmt.Printf("%-28s ⚠️  %v\n", truncate(id, 28), err)
				continue
			}
			fmt.Printf("%-28s %-36s %-10s %6.2f %8s\n",
				truncate(rec.ID, 28), truncate(rec.Title, 36), rec.Difficulty, rec.StarRating, formatLength(rec.Duration))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one map in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx := cmd.Context()
		rec, err := svc.Record(ctx, args[0])
		if err != nil {
			return err
		}
		audio, err := svc.Payload(ctx, storage.KindAudio, rec.ID)
		if err != nil {
			return err
		}
		cover, err := svc.Payload(ctx, storage.KindImage, rec.ID)
		if err != nil {
			return err
		}
		printRecord(rec)
		fmt.Printf("   Audio:      %s\n", payloadSize(audio))
		fmt.Printf("   Cover:      %s\n", payloadSize(cover))
		return nil
	},
}

func printRecord(rec *models.MapRecord) {
	fmt.Printf("\n🎵 %s\n", rec.Title)
	fmt.Printf("   ID:         %s\n", rec.ID)
	if rec.SongName != "" {
		fmt.Printf("   Song:       %s\n", rec.SongName)
	}
	fmt.Printf("   Mappers:    %s\n", strings.Join(rec.Mappers, ", "))
	fmt.Printf("   Difficulty: %s\n", rec.Difficulty)
	fmt.Printf("   Stars:      %.2f\n", rec.StarRating)
	fmt.Printf("   Status:     %s\n", rec.OnlineStatus)
	fmt.Printf("   Notes:      %s\n", humanize.Comma(int64(rec.NoteCount)))
	fmt.Printf("   Length:     %s\n", formatLength(rec.Duration))
}

func payloadSize(b []byte) string {
	if b == nil {
		return "none"
	}
	return humanize.Bytes(uint64(len(b)))
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library",
	Long: "Search with free text and FIELD<op>VALUE filters, op being =, > or <.\n" +
		"Fields: " + strings.Join(sortedFields(), ", ") + "\n\n" +
		"Example: mapvault search 'diff=hard star>3 camellia'",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx := cmd.Context()
		query := strings.Join(args, " ")
		start := time.Now()
		ids, err := svc.Search(ctx, query, func(matches []string, percent float64) {
			fmt.Fprintf(os.Stderr, "\r🔍 %5.1f%%  %d match(es)", percent, len(matches))
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		fmt.Printf("\n✅ %d match(es) in %s\n\n", len(ids), time.Since(start).Round(time.Millisecond))
		for _, id := range ids {
			rec, err := svc.Record(ctx, id)
			if err != nil {
				fmt.Printf("   %s\n", id)
				continue
			}
			fmt.Printf("   %-28s %s (%s, %.2f★)\n", truncate(id, 28), rec.Title, rec.Difficulty, rec.StarRating)
		}
		return nil
	},
}

func sortedFields() []string {
	fields := search.Fields()
	slices.Sort(fields)
	return fields
}

var exportLegacy bool

var exportCmd = &cobra.Command{
	Use:   "export <id> <output>",
	Short: "Write a stored map back to a map file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		data, err := svc.Export(cmd.Context(), args[0], exportLegacy)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s (%s)\n", args[1], humanize.Bytes(uint64(len(data))))
		return nil
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "catalog-import",
	Short: "Download and import every map listed by the remote catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
		defer cancel()

		fmt.Println("🌐 Fetching catalog...")
		report, err := svc.ImportFromCatalog(ctx)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

// consolePlayer prints what a real player would receive.
type consolePlayer struct{}

func (consolePlayer) Load(_ context.Context, sel *mapvault.Selection) error {
	printRecord(sel.Record)
	fmt.Printf("   Audio:      %s\n", payloadSize(sel.Audio))
	if info := sel.AudioInfo; info != nil {
		fmt.Printf("               %d Hz, %d ch, %d bit, %s\n", info.SampleRate, info.Channels, info.BitDepth, info.Duration.Round(time.Millisecond))
	}
	fmt.Printf("   Cover:      %s\n", payloadSize(sel.Cover))
	return nil
}

var selectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Load a map the way a player would and print what it gets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService(mapvault.WithPlayer(consolePlayer{}))
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		_, err = svc.SelectMap(cmd.Context(), args[0])
		if err != nil {
			logger.Errorf("SelectMap failed: %v", err)
		}
		return err
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatLength(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func init() {
	exportCmd.Flags().BoolVar(&exportLegacy, "legacy", false, "Write the legacy format")

	rootCmd.AddCommand(importCmd, listCmd, showCmd, searchCmd, exportCmd, catalogImportCmd, selectCmd)
}
