package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options 全局命令行参数
type options struct {
	configFile string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd 创建根命令
// 每次调用使用独立的viper实例，便于测试
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "doc-chunker",
		Short: "Load documents and split their text into fixed-size chunks",
		Long: `doc-chunker loads a PDF, Markdown or plain text document, splits its text
with a character splitter and prints the resulting chunks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newSplitCmd(v, opts),
		newUploadCmd(v, opts),
		newCacheCmd(v, opts),
	)
	return rootCmd
}
