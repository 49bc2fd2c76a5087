package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AnyUserName/lazyimg-cli/internal/config"
	"github.com/AnyUserName/lazyimg-cli/internal/pipeline"
	"github.com/AnyUserName/lazyimg-cli/internal/profile"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

var (
	buildSelector     string
	buildClasses      []string
	buildCacheFile    string
	buildNoScript     bool
	buildScriptSrc    string
	buildPreferNative bool
	buildRoot         string
	buildFallbackDir  string
	buildProfile      string
	buildQuality      int
	buildWorkers      int
	buildNoFetch      bool
	buildFetchTimeout time.Duration
	buildJSON         bool
)

var buildCmd = &cobra.Command{
	Use:   "build <site_dir>",
	Short: "Rewrite images in every HTML page of a built site",
	Long: `Scans the site directory for .html files and rewrites matching <img>
elements in place:

  - the original src moves to data-src (srcset to data-srcset)
  - the lazy-loading class names are added
  - src becomes a tiny blurred placeholder data URI
  - width and height are filled from the real image

A bootstrap script that loads the lazy-loading library is appended to each
processed page unless --no-script is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildSelector, "selector", "s", "", "CSS selector for images (default from config)")
	f.StringSliceVar(&buildClasses, "class", nil, "class names added to images")
	f.StringVar(&buildCacheFile, "cache-file", "", "cache file; empty string disables persistence")
	f.BoolVar(&buildNoScript, "no-script", false, "do not append the bootstrap script")
	f.StringVar(&buildScriptSrc, "script-src", "", "lazy-loading library URL")
	f.BoolVar(&buildPreferNative, "prefer-native", false, "prefer native loading=lazy when the browser supports it")
	f.StringVar(&buildRoot, "root", "", "directory root-relative src values resolve against (default <site_dir>)")
	f.StringVar(&buildFallbackDir, "fallback-dir", "", "directory retried when a local image is missing")
	f.StringVarP(&buildProfile, "profile", "p", "", fmt.Sprintf("placeholder profile %v", profile.Names()))
	f.IntVarP(&buildQuality, "quality", "q", 0, "placeholder quality 1-100 (0 = profile default)")
	f.IntVarP(&buildWorkers, "workers", "w", 0, "parallel pages (0 = NumCPU)")
	f.BoolVar(&buildNoFetch, "no-fetch", false, "do not fetch remote images")
	f.DurationVar(&buildFetchTimeout, "fetch-timeout", 0, "timeout per remote fetch (0 = none)")
	f.BoolVar(&buildJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(buildCmd)
}

// applyBuildFlags copies explicitly set flags over the config file values.
func applyBuildFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("selector") {
		c.ImgSelector = buildSelector
	}
	if f.Changed("class") {
		c.ClassName = config.ClassNames(buildClasses)
	}
	if f.Changed("cache-file") {
		c.CacheFile = buildCacheFile
	}
	if f.Changed("no-script") {
		c.AppendInitScript = !buildNoScript
	}
	if f.Changed("script-src") {
		c.ScriptSrc = buildScriptSrc
	}
	if f.Changed("prefer-native") {
		c.PreferNativeLazyLoad = buildPreferNative
	}
	if f.Changed("root") {
		c.RootDir = buildRoot
	}
	if f.Changed("fallback-dir") {
		c.FallbackDir = buildFallbackDir
	}
	if f.Changed("profile") {
		c.Placeholder.Profile = buildProfile
	}
	if f.Changed("quality") {
		c.Placeholder.Quality = buildQuality
	}
	if f.Changed("workers") {
		c.Workers = buildWorkers
	}
	if f.Changed("no-fetch") {
		c.Fetch.Enabled = !buildNoFetch
	}
	if f.Changed("fetch-timeout") {
		c.Fetch.Timeout = buildFetchTimeout
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	siteDir := args[0]

	info, err := os.Stat(siteDir)
	if err != nil {
		return fmt.Errorf("site directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("site directory: %s is not a directory", siteDir)
	}

	applyBuildFlags(cmd, cfg)
	warnings, err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	root := cfg.RootDir
	if root == "" {
		root = siteDir
	}
	root = filepath.Clean(root)
	cfg.RootDir = root
	logVerbose("site:    %s", siteDir)
	logVerbose("root:    %s", root)
	logVerbose("cache:   %q", cfg.CacheFile)
	logVerbose("profile: %s", profile.Get(cfg.Placeholder.Profile).Name)

	p, err := pipeline.New(cfg, pipeline.Options{
		PathTransform: resolver.SiteTransform(root),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Run(cmd.Context(), filepath.Clean(siteDir))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("build complete",
		zap.Int("pages", report.Pages),
		zap.Int("images", report.Images.Images),
		zap.Duration("elapsed", report.Duration))

	out := cmd.OutOrStdout()
	if buildJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printBuildReport(out, report, cfg.CacheFile)
	return nil
}

func printBuildReport(w io.Writer, r *pipeline.Report, cacheFile string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║             lazyimg build complete               ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Pages:       %d (%d rewritten", r.Pages, r.Rewritten)
	if r.PageErrors > 0 {
		fmt.Fprintf(w, ", %d failed", r.PageErrors)
	}
	fmt.Fprintln(w, ")")

	img := r.Images
	fmt.Fprintf(w, "  Images:      %d\n", img.Images)
	fmt.Fprintf(w, "    processed: %d\n", img.Processed)
	if img.SkippedDataURI > 0 {
		fmt.Fprintf(w, "    data uri:  %d\n", img.SkippedDataURI)
	}
	if img.SkippedNoSrc > 0 {
		fmt.Fprintf(w, "    no src:    %d\n", img.SkippedNoSrc)
	}
	if img.Unsupported > 0 {
		fmt.Fprintf(w, "    no placeholder: %d\n", img.Unsupported)
	}
	if img.SkippedRemote > 0 {
		fmt.Fprintf(w, "    remote skipped: %d\n", img.SkippedRemote)
	}
	if img.Failed > 0 {
		fmt.Fprintf(w, "    failed:    %d\n", img.Failed)
	}

	c := r.Cache
	hitRate := float64(0)
	if lookups := c.Hits + c.Misses; lookups > 0 {
		hitRate = float64(c.Hits) / float64(lookups) * 100
	}
	fmt.Fprintf(w, "  Cache:       %d entries, %.0f%% hits\n", c.Entries, hitRate)
	if cacheFile != "" {
		size := int64(0)
		if fi, err := os.Stat(cacheFile); err == nil {
			size = fi.Size()
		}
		fmt.Fprintf(w, "  Cache file:  %s (%s)\n", cacheFile, formatBytes(size))
	}
	if c.WriteErrors > 0 {
		fmt.Fprintf(w, "  Cache writes failed: %d\n", c.WriteErrors)
	}
	fmt.Fprintf(w, "  Workers:     %d\n", r.Workers)
	fmt.Fprintf(w, "  Time:        %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
