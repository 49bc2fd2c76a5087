package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vincent-petithory/dataurl"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/hasher"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

var validateCheckSources bool

var validateCmd = &cobra.Command{
	Use:   "validate [cache_file]",
	Short: "Validate a lazyimg cache file",
	Long: `Checks every cache entry for usable dimensions, a decodable placeholder
data URI and a well-formed content hash.

With --check-sources, local images are read again and their content hash is
compared with the cached one, so entries for images that changed on disk
are reported as stale.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateCheckSources, "check-sources", false, "re-hash local source images and report stale entries")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := cacheFileArg(args)
	if err != nil {
		return err
	}
	entries, err := cache.ReadFile(path)
	if err != nil {
		return err
	}

	var r *resolver.Resolver
	if validateCheckSources {
		var rc resolver.Config
		if cfg != nil {
			rc.FallbackDir = cfg.FallbackDir
			rc.RootDir = cfg.RootDir
		}
		r = resolver.New(rc)
	}
	errs := validateCache(cmd.Context(), entries, r)

	out := cmd.OutOrStdout()
	if len(errs) == 0 {
		fmt.Fprintln(out, "  ✓ Cache file is valid")
		fmt.Fprintf(out, "  ✓ %d entries\n", len(entries))
		return nil
	}

	printValidation(out, errs)
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func printValidation(w io.Writer, errs []string) {
	fmt.Fprintf(w, "  ✗ Cache file has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "    • %s\n", e)
	}
}

// validateCache checks entries in reference order. When r is non-nil,
// local sources carrying a hash are re-read and compared.
func validateCache(ctx context.Context, entries map[string]cache.Entry, r *resolver.Resolver) []string {
	var errs []string

	refs := make([]string, 0, len(entries))
	for ref := range entries {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		e := entries[ref]

		if !resolver.Supported(resolver.DetectExtension(ref)) {
			errs = append(errs, fmt.Sprintf("%q: unsupported image extension", ref))
		}
		if e.Format != "" && !resolver.Supported(e.Format) {
			errs = append(errs, fmt.Sprintf("%q: unknown format %q", ref, e.Format))
		}

		if e.IsVector() {
			if e.Width < 0 || e.Height < 0 {
				errs = append(errs, fmt.Sprintf("%q: negative dimensions %dx%d", ref, e.Width, e.Height))
			}
		} else if !e.HasDimensions() {
			errs = append(errs, fmt.Sprintf("%q: invalid dimensions %dx%d", ref, e.Width, e.Height))
		}

		du, err := dataurl.DecodeString(e.Src)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%q: placeholder is not a data URI", ref))
		case du.MediaType.Type != "image":
			errs = append(errs, fmt.Sprintf("%q: placeholder media type %s", ref, du.MediaType.ContentType()))
		case len(du.Data) == 0:
			errs = append(errs, fmt.Sprintf("%q: empty placeholder", ref))
		}

		if e.Hash != "" && !validHash(e.Hash) {
			errs = append(errs, fmt.Sprintf("%q: malformed hash %q", ref, e.Hash))
		}

		if r != nil && validHash(e.Hash) && !resolver.IsRemote(ref) {
			if msg := checkSource(ctx, r, ref, e.Hash); msg != "" {
				errs = append(errs, fmt.Sprintf("%q: %s", ref, msg))
			}
		}
	}
	return errs
}

func checkSource(ctx context.Context, r *resolver.Resolver, ref, want string) string {
	src, err := r.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return "source not found"
		}
		return fmt.Sprintf("source unreadable: %v", err)
	}
	if got := hasher.ContentHash(src.Data, hasher.Len); got != want {
		logVerbose("%s: cached hash %s, source hash %s", ref, want, got)
		return "stale: source changed since it was cached"
	}
	return ""
}

func validHash(h string) bool {
	if len(h) != hasher.Len {
		return false
	}
	return strings.Trim(h, "0123456789abcdef") == ""
}
