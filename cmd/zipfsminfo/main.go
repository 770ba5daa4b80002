//go:build unix

// Command zipfsminfo lists the entries of a ZIP archive, optionally
// filtered by a glob pattern, using zipfsm's sans-I/O decoder driven over a
// local file or an http(s):// URL.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/martin-sucha/zipfsm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var glob string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "zipfsminfo <archive.zip>",
		Short: "List the entries of a ZIP archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], glob, verbose)
		},
	}
	cmd.Flags().StringVar(&glob, "glob", "", "only list entries matching this doublestar glob pattern")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(path, glob string, verbose bool) error {
	log := logrus.StandardLogger()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()
	src, size, closeSrc, err := openSource(ctx, path)
	if err != nil {
		return err
	}
	defer closeSrc()

	ba, err := zipfsm.OpenBlockingArchive(ctx, src, size, zipfsm.WithLogger(log))
	if err != nil {
		return err
	}

	entries := ba.Archive().Entries()
	if glob != "" {
		entries, err = ba.Archive().Match(glob)
		if err != nil {
			return err
		}
	}

	for _, e := range entries {
		fmt.Printf("%12d %12d %s %s\n", e.CompressedSize64(), e.UncompressedSize64(), e.Modified.Format("2006-01-02 15:04"), e.Name)
	}
	return nil
}

// openSource resolves path into a zipfsm.SliceSource and its total size,
// dispatching to a ranged HTTP source for an http(s):// URL and to a local
// file otherwise. The returned close func must always be called.
func openSource(ctx context.Context, path string) (zipfsm.SliceSource, uint64, func(), error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		size, err := zipfsm.HTTPContentLength(ctx, http.DefaultClient, path)
		if err != nil {
			return nil, 0, func() {}, err
		}
		return zipfsm.NewHTTPSliceSource(http.DefaultClient, path), size, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, func() {}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, func() {}, err
	}
	return zipfsm.NewFileSliceSource(f), uint64(info.Size()), func() { f.Close() }, nil
}
