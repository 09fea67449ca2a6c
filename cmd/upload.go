package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/logging"
	"github.com/kozaktomas/photo-library/internal/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <host> <path>",
	Short: "Upload a directory of photos to a running server",
	Long: `Upload every JPEG and PNG file under path to the server at host.
The host may be host:port or a base URL. Directories are walked recursively
and at most --concurrency uploads run at once.

Examples:
  photo-library upload localhost:8080 ~/Pictures/2021
  photo-library upload https://photos.example.com ./scan.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().Int("concurrency", constants.DefaultUploadConcurrency, "Number of parallel uploads")
	uploadCmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

func runUpload(cmd *cobra.Command, args []string) error {
	host, root := args[0], args[1]

	logCloser, err := logging.Init(logging.Options{Level: os.Getenv("PHOTOS_LOG")})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := uploader.Options{
		Concurrency: mustGetInt(cmd, "concurrency"),
		Progress:    cmd.ErrOrStderr(),
	}
	if mustGetBool(cmd, "quiet") {
		opts.Progress = nil
	}
	up, err := uploader.New(host, opts)
	if err != nil {
		return err
	}

	paths, walkErrs := uploader.Gather(root)
	for _, err := range walkErrs {
		slog.Error("skipping unreadable path", "error", err)
	}
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No photos found in %s\n", root)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploading %d photos to %s\n", len(paths), up.Endpoint())

	result := up.Upload(ctx, paths)

	fmt.Fprintln(cmd.OutOrStdout())
	for _, err := range result.Errors {
		printError(cmd.ErrOrStderr(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %d, already in library: %d, failed: %d\n",
		result.Uploaded, result.Duplicates, len(result.Errors))

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d of %d uploads failed", len(result.Errors), len(paths))
	}
	if ctx.Err() != nil {
		return errors.New("upload interrupted")
	}
	return nil
}
