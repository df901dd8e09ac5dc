package main

import (
	"fmt"
	"log"
	"os"

	"apk_release/pkg/adb"
	"apk_release/pkg/api"
	"apk_release/pkg/config"
	"apk_release/pkg/logger"
	"apk_release/pkg/manifest"
	"apk_release/pkg/models"
	"apk_release/pkg/mqtt"
	"apk_release/pkg/release"
	"apk_release/pkg/shell"

	"github.com/spf13/cobra"
)

var (
	envFile        string
	verbose        bool
	allowedDevices string

	publish    bool
	installAPK bool
	install    bool
	keepGoing  bool
	reportFmt  string

	addr string

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
		Use:   "release-install",
		Short: "Push or install the release APK on connected adb devices",
		Long: "读取 package.json 生成带时间戳的产物名称，可选地先执行 npm version patch，" +
			"然后通过 adb 把 release APK 推送到设备下载目录或直接安装。\n" +
			"开关通过环境变量 HAS_PUBLISH / HAS_INSTALL_APK / HAS_INSTALL / ALLOWED_DEVICES 或对应参数控制。",
		Run: runInstall,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, ".env 文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	rootCmd.PersistentFlags().StringVarP(&allowedDevices, "allowed-devices", "d", "", "逗号分隔的设备白名单（覆盖 ALLOWED_DEVICES）")

	rootCmd.Flags().BoolVar(&publish, "publish", false, "先执行 npm version patch（覆盖 HAS_PUBLISH）")
	rootCmd.Flags().BoolVar(&installAPK, "install-apk", false, "推送 APK 到设备下载目录（覆盖 HAS_INSTALL_APK）")
	rootCmd.Flags().BoolVar(&install, "install", false, "在设备上安装 APK（覆盖 HAS_INSTALL）")
	rootCmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "某台设备失败后继续处理其余设备（覆盖 CONTINUE_ON_ERROR）")
	rootCmd.Flags().StringVarP(&reportFmt, "report", "r", "", "运行结束后输出报告: text, json, yaml")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices after allow-list filtering",
		Run:   runDevices,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for listing devices and triggering installs",
		Run:   runServe,
	}
	serveCmd.Flags().StringVarP(&addr, "addr", "a", "", "HTTP监听地址（覆盖 HTTP_ADDR）")

	rootCmd.AddCommand(devicesCmd, serveCmd)
	return rootCmd
}

// loadConfig 加载配置，命令行参数仅在显式给出时覆盖环境变量
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("allowed-devices") {
		cfg.AllowedDevices = allowedDevices
	}
	if flags.Changed("publish") {
		cfg.Publish = publish
	}
	if flags.Changed("install-apk") {
		cfg.InstallAPK = installAPK
	}
	if flags.Changed("install") {
		cfg.Install = install
	}
	if flags.Changed("keep-going") {
		cfg.KeepGoing = keepGoing
	}
	if flags.Changed("addr") {
		cfg.HTTPAddr = addr
	}
	return cfg, nil
}

// newInstaller 组装 adb、npm 与通知器
func newInstaller(cfg *config.Config, l logger.Logger, notifier mqtt.Notifier) *release.Installer {
	runner := shell.NewExecRunner()
	return release.NewInstaller(
		adb.NewClient(cfg.ADBPath, runner),
		manifest.NewBumper(cfg.NPMPath, runner),
		notifier,
		l,
	)
}

// newNotifier MQTT连接失败时降级为不通知
func newNotifier(cfg *config.Config, l logger.Logger) mqtt.Notifier {
	notifier, err := mqtt.NewNotifier(cfg, l)
	if err != nil {
		l.Warn("MQTT notifications disabled: %v", err)
	}
	return notifier
}

func runInstall(cmd *cobra.Command, args []string) {
	l := logger.NewDefault(verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		l.Error("%v", err)
		exitCode = 1
		return
	}
	if !release.ValidFormat(reportFmt) {
		l.Error("unknown report format %q (want text, json or yaml)", reportFmt)
		exitCode = 1
		return
	}

	var notifier mqtt.Notifier = mqtt.NopNotifier{}
	if cfg.AnyDeviceMode() || cfg.Publish {
		notifier = newNotifier(cfg, l)
	}
	defer notifier.Close()

	report, runErr := newInstaller(cfg, l, notifier).Run(release.OptionsFromConfig(cfg))
	if report != nil {
		if err := release.WriteReport(os.Stdout, report, reportFmt); err != nil {
			l.Error("write report: %v", err)
		}
	}

	if runErr != nil {
		l.Error("%v", runErr)
		exitCode = exitStatus(report, runErr)
	}
}

// exitStatus 进程退出码：优先取第一台失败设备上 adb 的退出码
func exitStatus(report *models.RunReport, err error) int {
	if err == nil {
		return 0
	}
	if report != nil {
		if failed, ok := report.Failed(); ok && failed.ExitCode != 0 {
			return failed.ExitCode
		}
	}
	return shell.ExitCode(err)
}

func runDevices(cmd *cobra.Command, args []string) {
	l := logger.NewDefault(verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		l.Error("%v", err)
		exitCode = 1
		return
	}

	devices, err := newInstaller(cfg, l, nil).Targets(release.ResolveAllowList(cfg.AllowedDevices))
	if err != nil {
		l.Error("%v", err)
		exitCode = shell.ExitCode(err)
		return
	}
	for _, id := range devices {
		fmt.Println(id)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	l := logger.NewDefault(verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		l.Error("%v", err)
		exitCode = 1
		return
	}

	notifier := newNotifier(cfg, l)
	defer notifier.Close()

	server := api.NewServer(newInstaller(cfg, l, notifier), release.OptionsFromConfig(cfg))

	l.Info("HTTP服务器启动在 %s", cfg.HTTPAddr)
	l.Info("API: http://localhost%s/api/v1/health", cfg.HTTPAddr)
	if err := server.Run(cfg.HTTPAddr); err != nil {
		l.Error("HTTP服务器启动失败: %v", err)
		exitCode = 1
	}
}
