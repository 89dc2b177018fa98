package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/repository/cache"
	"github.com/oshokin/batect-launcher/internal/service/janitor"
)

// Output formats of "cache list".
const (
	outputTable = "table"
	outputYAML  = "yaml"
)

var (
	// listOutput is the format of "cache list".
	listOutput string
	// verifyParallelism bounds concurrent hashing in "cache verify".
	verifyParallelism int
	// pruneRetention is how long unused versions are kept.
	pruneRetention time.Duration
	// pruneKeep is the version treated as current by "cache prune".
	pruneKeep string
	// pruneForce skips the running-launcher check.
	pruneForce bool
	// pruneDryRun only reports what would be deleted.
	pruneDryRun bool

	// errCorruptEntries is returned when verification finds corrupt artifacts.
	errCorruptEntries = errors.New("corrupt cached versions found")

	// cacheCmd groups the cache maintenance commands.
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the artifact cache",
	}

	// cacheListCmd lists cached versions.
	cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, _, err := newJanitor()
			if err != nil {
				return err
			}

			entries, err := j.List()
			if err != nil {
				return err
			}

			return printEntries(cmd.OutOrStdout(), entries, listOutput)
		},
	}

	// cacheVerifyCmd re-hashes cached artifacts.
	cacheVerifyCmd = &cobra.Command{
		Use:   "verify [version...]",
		Short: "Verify cached artifacts against the checksums recorded at download time",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, _, err := newJanitor()
			if err != nil {
				return err
			}

			results, err := j.Verify(cmd.Context(), toVersions(args), verifyParallelism)
			if err != nil {
				return err
			}

			corrupt := 0

			for _, result := range results {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", result.VersionID, result.Status)

				if result.Status == janitor.StatusCorrupt {
					corrupt++
				}
			}

			if corrupt > 0 {
				return fmt.Errorf("%w: %d", errCorruptEntries, corrupt)
			}

			return nil
		},
	}

	// cachePruneCmd deletes versions that have not been used recently.
	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete cached versions that have not been used recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			j, current, err := newJanitor()
			if err != nil {
				return err
			}

			if pruneKeep != "" {
				current = bootstrap.VersionID(pruneKeep)
			}

			result, err := j.Prune(ctx, janitor.PruneOptions{
				Current:   current,
				Retention: pruneRetention,
				Force:     pruneForce,
				DryRun:    pruneDryRun,
			})
			if err != nil {
				return err
			}

			verb := "deleted"
			if pruneDryRun {
				verb = "would delete"
			}

			for _, versionID := range result.Deleted {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, versionID)
			}

			if len(result.Failed) > 0 {
				return fmt.Errorf("%d cached versions could not be deleted", len(result.Failed))
			}

			return nil
		},
	}

	// cacheRemoveCmd deletes specific versions.
	cacheRemoveCmd = &cobra.Command{
		Use:   "rm version...",
		Short: "Delete cached versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, _, err := newJanitor()
			if err != nil {
				return err
			}

			for _, versionID := range toVersions(args) {
				if err = j.Remove(cmd.Context(), versionID); err != nil {
					return err
				}
			}

			return nil
		},
	}
)

// newJanitor builds a janitor over the configured cache and returns the configured version.
func newJanitor() (*janitor.Janitor, bootstrap.VersionID, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}

	return janitor.New(cache.NewFileStore(cfg.CacheDir)), cfg.Version, nil
}

// toVersions converts command arguments to version identifiers.
func toVersions(args []string) []bootstrap.VersionID {
	versions := make([]bootstrap.VersionID, 0, len(args))
	for _, arg := range args {
		versions = append(versions, bootstrap.VersionID(arg))
	}

	return versions
}

// listedEntry is the YAML shape of a cached version.
type listedEntry struct {
	Version   string          `yaml:"version"`
	Path      string          `yaml:"path"`
	Size      int64           `yaml:"size"`
	LastUsed  *time.Time      `yaml:"last_used,omitempty"`
	Download  *cache.Metadata `yaml:"download,omitempty"`
	Available bool            `yaml:"available"`
}

// printEntries renders cached versions in the requested format.
func printEntries(out io.Writer, entries []*cache.Entry, format string) error {
	switch format {
	case outputYAML:
		listed := make([]listedEntry, 0, len(entries))
		for _, entry := range entries {
			listed = append(listed, listedEntry{
				Version:   entry.VersionID.String(),
				Path:      entry.ArtifactPath,
				Size:      entry.Size,
				LastUsed:  entry.LastUsed,
				Download:  entry.Metadata,
				Available: entry.HasArtifact,
			})
		}

		encoder := yaml.NewEncoder(out)
		defer func() {
			_ = encoder.Close()
		}()

		return encoder.Encode(listed)
	case outputTable:
		writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

		_, _ = fmt.Fprintln(writer, "VERSION\tSIZE\tLAST USED\tCHECKSUM")

		for _, entry := range entries {
			size := "missing"
			if entry.HasArtifact {
				size = humanize.Bytes(uint64(entry.Size)) //nolint:gosec // File sizes are never negative.
			}

			lastUsed := "never"
			if entry.LastUsed != nil {
				lastUsed = humanize.Time(*entry.LastUsed)
			}

			digest := "-"
			if entry.Metadata != nil && entry.Metadata.Checksum != "" {
				digest = entry.Metadata.Checksum
			}

			_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", entry.VersionID, size, lastUsed, digest)
		}

		return writer.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	cacheListCmd.Flags().StringVarP(&listOutput, "output", "o", outputTable, "output format: table or yaml")
	cacheVerifyCmd.Flags().IntVar(&verifyParallelism, "parallelism", janitor.DefaultParallelism, "artifacts hashed at once")
	cachePruneCmd.Flags().DurationVar(&pruneRetention, "older-than", janitor.DefaultRetention, "delete versions unused for longer than this")
	cachePruneCmd.Flags().StringVar(&pruneKeep, "keep", "", "version never to delete, with every newer one (default: the configured version)")
	cachePruneCmd.Flags().BoolVar(&pruneForce, "force", false, "prune even while batect is running (launchers are only visible until they hand over to Java)")
	cachePruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "only print what would be deleted")

	cacheCmd.AddCommand(cacheListCmd, cacheVerifyCmd, cachePruneCmd, cacheRemoveCmd)
	rootCmd.AddCommand(cacheCmd)
}
