package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

var statsCmd = &cobra.Command{
	Use:   "stats [cache_file]",
	Short: "Display statistics for a lazyimg cache file",
	Long: `Reads the cache file (default from config) and prints entry counts, the
format breakdown, placeholder payload sizes and the heaviest placeholders.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func cacheFileArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg == nil || cfg.CacheFile == "" {
		return "", fmt.Errorf("no cache file given and none configured")
	}
	return cfg.CacheFile, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	path, err := cacheFileArg(args)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	entries, err := cache.ReadFile(path)
	if err != nil {
		return err
	}

	printStats(cmd.OutOrStdout(), path, info.Size(), entries)
	return nil
}

func printStats(w io.Writer, path string, fileSize int64, entries map[string]cache.Entry) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Cache file:       %s (%s)\n", path, formatBytes(fileSize))
	fmt.Fprintf(w, "  Entries:          %d\n", len(entries))

	var remote, vector, hashed int
	var placeholderBytes int64
	for ref, e := range entries {
		if resolver.IsRemote(ref) {
			remote++
		}
		if e.IsVector() {
			vector++
		}
		if e.Hash != "" {
			hashed++
		}
		placeholderBytes += int64(len(e.Src))
	}
	fmt.Fprintf(w, "  Local / remote:   %d / %d\n", len(entries)-remote, remote)
	fmt.Fprintf(w, "  Placeholders:     %s total", formatBytes(placeholderBytes))
	if len(entries) > 0 {
		fmt.Fprintf(w, ", %s average", formatBytes(placeholderBytes/int64(len(entries))))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Content hashes:   %d / %d entries\n", hashed, len(entries))
	fmt.Fprintln(w)

	// Per-format breakdown.
	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	for _, e := range entries {
		f := e.Format
		if f == "" {
			f = "unknown"
		}
		fs := formatStats[f]
		fs.count++
		fs.bytes += int64(len(e.Src))
		formatStats[f] = fs
	}
	var formats []string
	for f := range formatStats {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	fmt.Fprintln(w, "  Format breakdown:")
	for _, f := range formats {
		fs := formatStats[f]
		fmt.Fprintf(w, "    %-8s  %4d images  %s placeholders\n", f, fs.count, formatBytes(fs.bytes))
	}
	fmt.Fprintln(w)

	// Heaviest placeholders.
	type item struct {
		ref  string
		size int
	}
	var items []item
	for ref, e := range entries {
		if !e.IsVector() {
			items = append(items, item{ref, len(e.Src)})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].size != items[j].size {
			return items[i].size > items[j].size
		}
		return items[i].ref < items[j].ref
	})
	n := len(items)
	if n > 10 {
		n = 10
	}
	if n > 0 {
		fmt.Fprintf(w, "  Top %d heaviest placeholders:\n", n)
		for _, it := range items[:n] {
			fmt.Fprintf(w, "    %-40s %8s\n", truncKey(it.ref, 40), formatBytes(int64(it.size)))
		}
		fmt.Fprintln(w)
	}
	if vector > 0 {
		fmt.Fprintf(w, "  SVG entries:      %d (dimensions never injected)\n\n", vector)
	}
}
