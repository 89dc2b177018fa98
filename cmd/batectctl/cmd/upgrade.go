package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/service/updater"
)

var (
	// upgradeOptions collects the self-upgrade flags.
	upgradeOptions = &updater.Options{}

	// upgradeCmd replaces the launcher executable with a verified download.
	upgradeCmd = &cobra.Command{
		Use:   "self-upgrade",
		Short: "Download and apply a new launcher executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return updater.Run(cmd.Context(), upgradeOptions)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := upgradeCmd.Flags()
	flags.StringVar(&upgradeOptions.SourceURL, "url", "", "where to download the new executable from")
	flags.StringVar(&upgradeOptions.Checksum, "checksum", "", `expected digest, "hex" or "algorithm:hex"`)
	flags.BoolVar(&upgradeOptions.Insecure, "insecure", false, "apply the download without a checksum")
	flags.StringVar(&upgradeOptions.TargetPath, "target", "", "executable to replace (default: the running batectctl)")
	flags.DurationVar(&upgradeOptions.Timeout, "timeout", config.DefaultDownloadTimeout, "connection timeout")
	flags.BoolVar(&upgradeOptions.Quiet, "quiet", false, "hide download progress")

	_ = upgradeCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(upgradeCmd)
}
