package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fyerfyer/doc-chunker/internal/document"
	"github.com/fyerfyer/doc-chunker/internal/logger"
	"github.com/fyerfyer/doc-chunker/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 输出格式
const (
	formatText = "text"
	formatJSON = "json"
)

// splitOptions split子命令参数
type splitOptions struct {
	index   int
	format  string
	prefix  bool
	refresh bool
}

// newSplitCmd 创建split子命令
func newSplitCmd(v *viper.Viper, root *options) *cobra.Command {
	opts := &splitOptions{}

	cmd := &cobra.Command{
		Use:   "split <path>",
		Short: "Split a document into chunks and print them",
		Long: `Split loads the document at <path> (a local path, or an object key when the
minio storage backend is configured), splits it and prints every chunk.
Use --index to print a single chunk, or --prefix to split every supported
document whose key starts with <path>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("unknown output format: %s", opts.format)
			}
			if opts.index < -1 {
				return fmt.Errorf("%w: --index must be -1 (all chunks) or a chunk position, got %d",
					services.ErrChunkIndexOutOfRange, opts.index)
			}
			return runSplit(cmd, v, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.Int("chunk-size", 200, "maximum chunk length in characters")
	flags.Int("chunk-overlap", 0, "characters shared by adjacent chunks")
	flags.String("separator", "", "unit separator, empty splits into single characters")
	flags.Bool("keep-separator", false, "keep the separator at the start of the following unit")
	flags.Bool("strip", false, "strip surrounding whitespace from chunks and drop empty ones")
	flags.String("engine", string(document.EngineLedongthuc), "PDF text engine (ledongthuc, pdfcpu)")
	flags.IntVar(&opts.index, "index", -1, "print only the chunk at this position (0-based)")
	flags.StringVarP(&opts.format, "format", "f", formatText, "output format (text, json)")
	flags.BoolVar(&opts.prefix, "prefix", false, "treat <path> as a storage prefix and split every document under it")
	flags.BoolVar(&opts.refresh, "refresh", false, "ignore cached chunks for the document and split it again")
	cmd.MarkFlagsMutuallyExclusive("index", "prefix")

	bindings := map[string]string{
		"document.chunk_size":       "chunk-size",
		"document.chunk_overlap":    "chunk-overlap",
		"document.separator":        "separator",
		"document.keep_separator":   "keep-separator",
		"document.strip_whitespace": "strip",
		"document.pdf_engine":       "engine",
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

// runSplit 组装服务并输出分段结果
func runSplit(cmd *cobra.Command, v *viper.Viper, root *options, opts *splitOptions, path string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, v, root.configFile, services.WithRefresh(opts.refresh))
	if err != nil {
		return err
	}
	defer a.Close()

	var chunks []document.Chunk
	if opts.prefix {
		chunks, err = a.service.ChunkPrefix(ctx, path)
	} else {
		chunks, err = a.service.Chunk(ctx, path)
	}
	if err != nil {
		return err
	}

	if opts.index >= 0 {
		chunk, err := services.SelectChunk(chunks, opts.index)
		if err != nil {
			return err
		}
		chunks = []document.Chunk{chunk}
	}

	a.log.WithFields(logrus.Fields{
		logger.FieldSource: path,
		logger.FieldChunks: len(chunks),
	}).Debug("Writing chunks")

	return writeChunks(cmd.OutOrStdout(), chunks, opts.format)
}

// writeChunks 按指定格式输出
func writeChunks(w io.Writer, chunks []document.Chunk, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	for _, c := range chunks {
		if _, err := fmt.Fprintln(w, c.String()); err != nil {
			return err
		}
	}
	return nil
}
