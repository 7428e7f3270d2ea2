package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/shouni/video-task-kit/pkg/bot"
	"github.com/shouni/video-task-kit/pkg/server"
)

func newServeCommand(c *cli) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive chat messages over a webhook and reply through the callback URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			messenger, err := bot.NewWebhookMessenger(newCallbackClient(c.cfg), c.cfg.Server.CallbackURL)
			if err != nil {
				return fmt.Errorf("server.callback_url を設定してください: %w", err)
			}
			a, err := buildApp(ctx, c.cfg, newHTTPClient(c.cfg), messenger)
			if err != nil {
				return err
			}

			if slog.Default().Enabled(ctx, slog.LevelDebug) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := &http.Server{
				Addr:              c.cfg.Server.Addr,
				Handler:           server.NewRouter(a.plugin, a.registry),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("Webhook サーバーを起動します", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					_ = a.plugin.Terminate(context.Background())
					return fmt.Errorf("サーバーの起動に失敗しました: %w", err)
				}
			case <-ctx.Done():
			}

			slog.Info("終了処理を開始します")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP サーバーの停止に失敗しました", "error", err)
			}
			return a.plugin.Terminate(shutdownCtx)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for in-flight generations on shutdown")
	return cmd
}
