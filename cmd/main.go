package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"adshield/config"
	"adshield/dom"
	"adshield/lifecycle"
	"adshield/logger"
	"adshield/ruleset"
	"adshield/stats"
	"adshield/webapi"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "scan":
		err = runScan(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "-h", "--help", "help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "错误：未知的子命令 '%s'，支持的命令：serve, scan, check\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		os.Exit(1)
	}
}

// commonFlags 各子命令共用的参数
type commonFlags struct {
	configPath string
	workDir    string
	logLevel   string
}

func newFlagSet(name string, c *commonFlags) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.StringVarP(&c.configPath, "config", "c", "", "配置文件路径（默认使用内置配置）")
	f.StringVarP(&c.workDir, "workdir", "w", "", "工作目录（默认：当前目录）")
	f.StringVar(&c.logLevel, "log-level", "", "日志级别，覆盖配置文件中的设置")
	return f
}

// loadConfig 按工作目录解析配置路径并加载配置
// 未指定路径时使用内置默认配置，返回的路径为空
func (c *commonFlags) loadConfig() (*config.Config, string, error) {
	if c.configPath == "" {
		cfg, err := config.Parse([]byte(config.DefaultConfigContent))
		if err != nil {
			return nil, "", err
		}
		c.applyLogLevel(cfg)
		return cfg, "", nil
	}

	path := c.configPath
	if !filepath.IsAbs(path) {
		dir := c.workDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, "", fmt.Errorf("无法获取当前工作目录：%w", err)
			}
			dir = wd
		}
		path = filepath.Join(dir, path)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", err
	}
	c.applyLogLevel(cfg)
	return cfg, path, nil
}

func (c *commonFlags) applyLogLevel(cfg *config.Config) {
	if c.logLevel != "" {
		cfg.System.LogLevel = c.logLevel
	}
	logger.SetLevel(cfg.System.LogLevel)
}

// runServe 启动控制接口，拦截器挂在一个宿主页面上，直到收到退出信号
func runServe(args []string) error {
	var c commonFlags
	f := newFlagSet("serve", &c)
	pagePath := f.StringP("page", "p", "", "初始宿主页面（HTML 文件，默认空白页）")
	port := f.Int("port", 0, "控制接口监听端口，覆盖配置文件中的设置")
	if err := f.Parse(args); err != nil {
		return err
	}

	cfg, cfgPath, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *port > 0 {
		cfg.WebUI.ListenPort = *port
	}
	logger.Infof("Log level set to: %s", cfg.System.LogLevel)

	doc := dom.NewDocument()
	if *pagePath != "" {
		if doc, err = parsePage(*pagePath); err != nil {
			return err
		}
	}

	rs, err := ruleset.Load(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// 首次读取 CPU 使用率需要一个采样基准
	stats.WarmUpCPU()

	host := webapi.NewHost(nil, doc)
	ctrl := lifecycle.New(rs, host, doc, stats.LoggerSink())
	if cfg.AdBlock.Enable {
		ctrl.Enable()
	}

	server := webapi.NewServer(cfg, cfgPath, ctrl, host)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	fmt.Printf("AdShield started, state: %s, rules: %d\n", ctrl.State(), rs.Count())
	if cfg.WebUI.Enabled {
		fmt.Printf("Control API: http://localhost:%d\n", cfg.WebUI.ListenPort)
	}

	// 设置优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverDone:
		if err != nil {
			ctrl.Disable()
			return fmt.Errorf("web API server: %w", err)
		}
		if cfg.WebUI.Enabled {
			return nil
		}
		// 控制接口关闭时只保留拦截器，等待信号退出
		<-quit
	}

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to stop Web API server: %v", err)
	}
	ctrl.Disable()

	logger.Infof("Stopped. Total blocked: %d", ctrl.TotalBlocked())
	return nil
}

// runScan 对一个 HTML 文件做一次完整扫描，把过滤后的页面写到标准输出
func runScan(args []string) error {
	var c commonFlags
	f := newFlagSet("scan", &c)
	output := f.StringP("output", "o", "", "输出文件（默认：标准输出）")
	quiet := f.BoolP("quiet", "q", false, "不输出拦截日志")
	if err := f.Parse(args); err != nil {
		return err
	}
	if f.NArg() != 1 {
		return fmt.Errorf("用法：adshield scan [选项] <page.html>")
	}

	cfg, _, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	rs, err := ruleset.Load(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	doc, err := parsePage(f.Arg(0))
	if err != nil {
		return err
	}

	var sink stats.Sink
	if !*quiet {
		sink = func(message string, category stats.Category) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", category, message)
		}
	}

	// 扫描不需要请求层，只挂在页面树上
	ctrl := lifecycle.New(rs, nil, doc, sink)
	ctrl.Enable()
	defer ctrl.Disable()

	var out io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	if err := doc.Render(out); err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	snap := ctrl.Stats()
	fmt.Fprintf(os.Stderr, "Removed %d elements, %d frames, %d scripts\n",
		snap.ElementsRemoved, snap.FramesBlocked, snap.ScriptsBlocked)
	return nil
}

// runCheck 加载规则并报告被跳过的条目，存在无效条目时返回错误
func runCheck(args []string) error {
	var c commonFlags
	f := newFlagSet("check", &c)
	if err := f.Parse(args); err != nil {
		return err
	}

	cfg, _, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	rs, err := ruleset.Load(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	fmt.Printf("Loaded %d rules\n", rs.Count())
	skipped := rs.Skipped()
	for _, s := range skipped {
		fmt.Printf("  skipped: %v\n", s)
	}
	if len(skipped) > 0 {
		return fmt.Errorf("%d invalid rule entries", len(skipped))
	}
	return nil
}

func parsePage(path string) (*dom.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	doc, err := dom.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", path, err)
	}
	return doc, nil
}

func printHelp() {
	fmt.Print(`AdShield - 页面广告拦截器

使用方法：
  adshield <子命令> [选项]

子命令：
  serve           启动拦截器和控制接口
  scan <文件>     扫描一个 HTML 页面，输出过滤后的结果
  check           校验规则配置

通用选项：
  -c, --config <路径>     配置文件路径（默认使用内置配置）
  -w, --workdir <路径>    工作目录（默认：当前目录）
      --log-level <级别>  日志级别（debug/info/warn/error）

serve 选项：
  -p, --page <文件>       初始宿主页面
      --port <端口>       控制接口监听端口

scan 选项：
  -o, --output <文件>     输出文件（默认：标准输出）
  -q, --quiet             不输出拦截日志

示例：
  # 启动控制接口
  adshield serve -c /etc/adshield/config.yaml

  # 过滤一个本地页面
  adshield scan page.html > clean.html

  # 校验规则
  adshield check -c config.yaml
`)
}
