// xmeterctl 是 xmeter 计量管道的命令行工具。
//
// 用法:
//
//	xmeterctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	--log-level    日志级别 debug/info/warn/error (默认: info)
//	--log-format   日志格式 text/json (默认: text)
//
// 命令:
//
//	meter          构建并发送单个计量事件（同步、逐条投递），输出事件 JSON
//	load           多个生产者并发写入进程级管道，结束后输出统计
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（构建事件失败、投递失败、配置加载失败）
//	2: 参数错误
//
// 示例:
//
//	xmeterctl meter -m ApiCalls -c customer-123 -v 1
//	xmeterctl meter -m ApiCalls -e -k $XMETER_API_KEY --endpoint https://ingest.example.com/ingest
//	xmeterctl load --producers 10 --config ./dev-metering.yaml
//	METERING_DOMAIN=prod xmeterctl load --config-dir /etc/xmeter
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xmeterctl",
		Usage:     "xmeter 计量管道命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "日志级别 (debug/info/warn/error)",
				Value:   "info",
				Sources: cli.EnvVars("XMETER_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
				Value: "text",
			},
		},
		Before:   initDomain,
		Commands: createCommands(),
		// 退出码统一由 execute 映射，不让 urfave/cli 直接 os.Exit
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	return execute(ctx, os.Args, os.Stdout, os.Stderr)
}

// execute 运行 CLI 并把错误映射为退出码
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if isCLIUsageError(err) {
			fmt.Fprintf(stderr, "参数错误: %v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
