package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xpipeline"
	"github.com/omeyang/xmeter/pkg/observability/xlog"
)

var now = time.Now

// usageError 参数错误，退出码 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// cliUsageMarkers urfave/cli 与 flag 包产生的参数错误特征
var cliUsageMarkers = []string{
	"flag provided but not defined",
	"invalid value",
	"Required flag",
	"No help topic",
	"flag needs an argument",
}

func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, m := range cliUsageMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createMeterCommand(),
		createLoadCommand(),
	}
}

// initDomain 从 METERING_DOMAIN 初始化计量域，重复初始化不视为错误
func initDomain(ctx context.Context, _ *cli.Command) (context.Context, error) {
	if err := xdomain.Init(); err != nil && !errors.Is(err, xdomain.ErrAlreadyInitialized) {
		return ctx, usagef("%v", err)
	}
	return ctx, nil
}

// newLogger 按全局选项构建日志，输出到 ErrWriter
func newLogger(cmd *cli.Command) (*xlog.Logger, func() error, error) {
	root := cmd.Root()
	logger, cleanup, err := xlog.New().
		SetOutput(root.ErrWriter).
		SetLevelString(root.String("log-level")).
		SetFormat(root.String("log-format")).
		SetDomainFromProcess().
		Build()
	if err != nil {
		return nil, nil, usagef("%v", err)
	}
	return logger, cleanup, nil
}

func createMeterCommand() *cli.Command {
	return &cli.Command{
		Name:  "meter",
		Usage: "构建并发送单个计量事件，输出事件 JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "meter",
				Aliases: []string{"m"},
				Usage:   "计量名称（必需）",
			},
			&cli.StringFlag{
				Name:    "customer",
				Aliases: []string{"c"},
				Usage:   "客户 ID",
				Value:   "customer-123",
			},
			&cli.StringFlag{
				Name:  "customer-name",
				Usage: "客户名称，默认与客户 ID 相同",
			},
			&cli.FloatFlag{
				Name:    "value",
				Aliases: []string{"v"},
				Usage:   "计量值",
				Value:   1,
			},
			&cli.BoolFlag{
				Name:    "error",
				Aliases: []string{"e"},
				Usage:   "标记为错误事件",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Usage:   "ingest API key，为空时只输出事件不发送",
				Sources: cli.EnvVars("XMETER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "ingest 地址，提供 API key 时必需",
				Sources: cli.EnvVars("XMETER_ENDPOINT"),
			},
			&cli.StringSliceFlag{
				Name:    "dimension",
				Aliases: []string{"d"},
				Usage:   "维度 key=value，可重复",
			},
		},
		Action: cmdMeter,
	}
}

func parseDimensions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	dims := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usagef("invalid dimension %q, expected key=value", p)
		}
		dims[strings.TrimSpace(k)] = v
	}
	return dims, nil
}

func cmdMeter(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.String("meter"))
	if name == "" {
		return usagef("--meter is required")
	}
	apiKey := cmd.String("api-key")
	endpoint := cmd.String("endpoint")
	if apiKey != "" && endpoint == "" {
		return usagef("--endpoint is required when --api-key is set")
	}
	dims, err := parseDimensions(cmd.StringSlice("dimension"))
	if err != nil {
		return err
	}

	customerName := cmd.String("customer-name")
	if customerName == "" {
		customerName = cmd.String("customer")
	}
	b := xevent.New(ctx, name).
		SetCustomer(cmd.String("customer"), customerName).
		SetValue(cmd.Float("value")).
		SetDimensions(dims)
	if cmd.Bool("error") {
		b.AsError()
	}
	ev, err := b.Build()
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}

	out, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	root := cmd.Root()
	fmt.Fprintln(root.Writer, string(out))

	if apiKey == "" {
		fmt.Fprintln(root.ErrWriter, "no api key, event not sent")
		return nil
	}

	logger, cleanup, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	cfg := xpipeline.DefaultConfig()
	cfg.SinkType = xpipeline.SinkDirect
	cfg.APIKey = apiKey
	cfg.Endpoint = endpoint
	cfg.IsAsync = false
	cfg.MaxBatchSize = 1
	cfg.MaxSecondsBetweenWrites = 0

	h, err := xpipeline.Acquire(cfg, xpipeline.WithLogger(logger.Slog()))
	if err != nil {
		return err
	}
	recErr := h.Pipeline().Record(ctx, ev)
	if err := errors.Join(recErr, h.Close()); err != nil {
		return err
	}
	logger.Info(ctx, "event sent",
		xlog.Meter(ev.Name()),
		xlog.CustomerID(ev.CustomerID()),
		xlog.Sink(cfg.SinkType),
	)
	return nil
}

func createLoadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "N 个生产者并发写入，生产者 i 写入 i 个事件",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "producers",
				Aliases: []string{"n"},
				Usage:   "生产者数量",
				Value:   5,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "管道配置文件 (yaml/json)",
			},
			&cli.StringFlag{
				Name:  "config-dir",
				Usage: "按计量域查找 <prefix>-metering.{yaml,yml,json} 的目录",
			},
			&cli.StringFlag{
				Name:  "meter",
				Usage: "计量名称",
				Value: "ApiCalls",
			},
		},
		Action: cmdLoad,
	}
}

// loadConfig 依次使用 --config、--config-dir，都未提供时使用内存 Sink
func loadConfig(cmd *cli.Command) (xpipeline.Config, error) {
	switch {
	case cmd.String("config") != "":
		return xpipeline.LoadConfig(cmd.String("config"))
	case cmd.String("config-dir") != "":
		return xpipeline.LoadDomainConfig(cmd.String("config-dir"))
	default:
		cfg := xpipeline.DefaultConfig()
		cfg.SinkType = xpipeline.SinkMemory
		return cfg, nil
	}
}

// loadResult load 命令的统计输出
type loadResult struct {
	Producers        int    `json:"producers"`
	Recorded         uint64 `json:"recorded"`
	EventsDelivered  uint64 `json:"eventsDelivered"`
	BatchesDelivered uint64 `json:"batchesDelivered"`
	BatchesFailed    uint64 `json:"batchesFailed"`
	EventsDropped    uint64 `json:"eventsDropped"`
}

func cmdLoad(ctx context.Context, cmd *cli.Command) error {
	producers := cmd.Int("producers")
	if producers < 1 {
		return usagef("--producers must be >= 1, got %d", producers)
	}
	meterName := cmd.String("meter")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, cleanup, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	if err := xpipeline.Init(cfg, xpipeline.WithLogger(logger.Slog())); err != nil {
		return err
	}
	p := xpipeline.Metering()
	start := now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= producers; i++ {
		g.Go(func() error {
			customer := fmt.Sprintf("customer-%d", i)
			for j := range i {
				dims := map[string]string{"producer": fmt.Sprint(i), "seq": fmt.Sprint(j)}
				if err := p.Meter(gctx, customer, customer, meterName, 1, now(), dims); err != nil {
					return fmt.Errorf("producer %d: %w", i, err)
				}
			}
			return nil
		})
	}
	recErr := g.Wait()
	closeErr := xpipeline.FlushAndClose()

	stats := p.Stats()
	logger.Info(ctx, "load finished",
		xlog.Sink(cfg.SinkType),
		xlog.Count(int64(stats.EventsDelivered)),
		xlog.Duration(now().Sub(start)),
	)
	out, err := json.Marshal(loadResult{
		Producers:        producers,
		Recorded:         stats.Recorded,
		EventsDelivered:  stats.EventsDelivered,
		BatchesDelivered: stats.BatchesDelivered,
		BatchesFailed:    stats.BatchesFailed,
		EventsDropped:    stats.EventsDropped,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, string(out))
	return errors.Join(recErr, closeErr)
}

// setupSignalHandler 第一次信号取消 ctx，第二次强制退出（130 = 128 + SIGINT）
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
