package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyerfyer/doc-chunker/internal/document"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newUploadCmd 创建upload子命令，把本地文件导入配置的存储
func newUploadCmd(v *viper.Viper, root *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [key]",
		Short: "Copy a local document into the configured storage",
		Long: `Upload stores a local PDF, Markdown or text file under [key] (default: the
file name) in the configured storage, so that "split" can read it from there.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			key := filepath.Base(args[0])
			if len(args) == 2 {
				key = args[1]
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", document.ErrIO, err)
			}
			defer file.Close()

			a, err := newApp(ctx, v, root.configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.service.Import(ctx, file, key)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%s\n", info.Key, info.Size, info.MimeType)
			return nil
		},
	}
}
