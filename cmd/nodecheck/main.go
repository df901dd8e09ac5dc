package main

import (
	"log"
	"os"

	"apk_release/pkg/config"
	"apk_release/pkg/guard"
	"apk_release/pkg/logger"
	"apk_release/pkg/shell"

	"github.com/spf13/cobra"
)

var (
	envFile string
	pinFile string
	nodeBin string

	exitCode int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("命令执行失败: %v", err)
	}
	os.Exit(exitCode)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nodecheck",
		Short: "Check that the installed node major version matches .node-version",
		Long: "比较 .node-version 中固定的主版本号与本机 node --version 的主版本号。\n" +
			"退出码: 0 匹配或未配置 .node-version, 1 文件为空或格式错误, 2 主版本不一致, 3 无法获取 node 版本。",
		Run: runCheck,
	}

	rootCmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, ".env 文件路径")
	rootCmd.Flags().StringVarP(&pinFile, "file", "f", "", "版本文件路径（覆盖 NODE_VERSION_FILE）")
	rootCmd.Flags().StringVar(&nodeBin, "node", "", "node 可执行文件（覆盖 NODE_BIN）")
	return rootCmd
}

func runCheck(cmd *cobra.Command, args []string) {
	// 只读取版本检查需要的配置，发布相关配置有误不影响这里的退出码
	cfg, err := config.LoadGuard(envFile)
	if err != nil {
		logger.NewDefault(false).Error("%v", err)
		exitCode = guard.ExitMalformed
		return
	}
	if cmd.Flags().Changed("file") {
		cfg.NodeVersionFile = pinFile
	}
	if cmd.Flags().Changed("node") {
		cfg.NodeBin = nodeBin
	}

	g := &guard.Guard{
		PinFile: cfg.NodeVersionFile,
		Runtime: guard.NodeVersion(shell.NewExecRunner(), cfg.NodeBin),
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	}
	exitCode = g.Check()
}
