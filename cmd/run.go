package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/misty02600/jmcomic-bot/config"
	"github.com/misty02600/jmcomic-bot/internal/bot"
	"github.com/misty02600/jmcomic-bot/internal/jm"
	"github.com/misty02600/jmcomic-bot/internal/onebot"
	"github.com/misty02600/jmcomic-bot/internal/store"
)

var configPath string

func Run(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath, "config.example.yml")
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	ctx = log.WithContext(ctx, logger)

	st, err := store.Open(cfg.DataFile, store.Options{
		DefaultGroupEnabled: cfg.AllowGroups,
		DefaultUserLimit:    cfg.UserLimits,
		Logger:              logger.With("module", "store"),
	})
	if err != nil {
		logger.Error("打开数据文件失败", "error", err)
		os.Exit(1)
	}

	src, err := jm.NewClient(jm.Options{
		CacheDir: cfg.CacheDir,
		Proxy:    cfg.JM.Proxy,
		Threads:  cfg.JM.Threads,
		Username: cfg.JM.Username,
		Password: cfg.JM.Password,
		Debug:    cfg.JM.Log,
		Logger:   logger.With("module", "jm"),
	})
	if err != nil {
		logger.Error("初始化JM客户端失败", "error", err)
		os.Exit(1)
	}
	if cfg.JM.Username != "" {
		go func() {
			loginCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()
			if err := src.Login(loginCtx); err != nil {
				logger.Warn("JM登录失败，将以游客身份访问", "error", err)
			}
		}()
	}

	tp := onebot.NewClient(cfg.WebsocketURL, cfg.WebsocketToken, logger.With("module", "onebot"))

	b := bot.New(cfg, st, src, tp, logger.With("module", "bot"))
	go b.RunWeeklyReset(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", b.HandleHTTPEvent)
	server := &http.Server{Handler: mux}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("监听事件端口失败", "addr", addr, "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("事件服务已启动", "addr", ln.Addr().String())
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("收到退出信号")
	case serveErr := <-errCh:
		logger.Error("事件服务异常", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭事件服务失败", "error", err)
	}
	logger.Info("已退出")
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	}), nil
}
