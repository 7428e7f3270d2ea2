package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-remote-io/pkg/s3factory"

	"github.com/shouni/video-task-kit/pkg/adapters"
	"github.com/shouni/video-task-kit/pkg/bot"
	"github.com/shouni/video-task-kit/pkg/config"
	"github.com/shouni/video-task-kit/pkg/generator"
	"github.com/shouni/video-task-kit/pkg/media"
	"github.com/shouni/video-task-kit/pkg/metrics"
	"github.com/shouni/video-task-kit/pkg/request"
)

// app は 1 プロセス分の依存関係です。
type app struct {
	plugin   *bot.Plugin
	registry *prometheus.Registry
}

// newHTTPClient は画像ダウンロード用のクライアントを返します。
// block_private_networks が有効な場合だけ SSRF / DNS Rebinding 検証付きのクライアントになります。
func newHTTPClient(cfg *config.Config) *httpkit.Client {
	return httpkit.New(cfg.Media.DownloadTimeout,
		httpkit.WithSkipNetworkValidation(!cfg.Media.BlockPrivateNetworks),
	)
}

// newCallbackClient はコールバック送信用のクライアントを返します。
// callback_url はオペレーターが設定する宛先で、同一ホストや社内ネットワークを指すことが多いため検証しません。
func newCallbackClient(cfg *config.Config) *httpkit.Client {
	return httpkit.New(cfg.Server.CallbackTimeout, httpkit.WithSkipNetworkValidation(true))
}

// newRemoteIO は media.remote_io に応じて gs:// / s3:// 用のファクトリを生成します。none なら nil です。
func newRemoteIO(ctx context.Context, cfg *config.Config) (remoteio.IOFactory, error) {
	switch cfg.Media.RemoteIO {
	case config.RemoteIOGCS:
		return gcsfactory.New(ctx)
	case config.RemoteIOS3:
		return s3factory.New(ctx)
	case config.RemoteIONone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("未対応の media.remote_io です: %q", cfg.Media.RemoteIO)
	}
}

// resources はプラグイン終了時にまとめて解放する共有リソースです。
type resources struct {
	pool   *adapters.ClientPool
	remote remoteio.IOFactory
}

func (r *resources) Close() {
	r.pool.Close()
	if r.remote != nil {
		if err := r.remote.Close(); err != nil {
			slog.Warn("リモートストレージクライアントのクローズに失敗しました", "error", err)
		}
	}
}

// buildApp は設定から Plugin を組み立てます。messenger は呼び出し元（run / serve）で決まります。
func buildApp(ctx context.Context, cfg *config.Config, hc media.HTTPClient, messenger bot.Messenger) (_ *app, err error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New("videobot", registry)
	if err != nil {
		return nil, err
	}

	builder, err := request.NewBuilder(cfg.BuilderOptions())
	if err != nil {
		return nil, fmt.Errorf("リクエストビルダーの初期化に失敗しました: %w", err)
	}

	res := &resources{pool: adapters.NewClientPool()}
	defer func() {
		if err != nil {
			res.Close()
		}
	}()

	client, err := adapters.NewTaskClient(res.pool, adapters.TaskClientConfig{
		APIURL:        cfg.Provider.APIURL,
		TaskURL:       cfg.Provider.TaskURL,
		APIKey:        cfg.Provider.APIKey,
		StatusTimeout: cfg.Provider.StatusTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("タスククライアントの初期化に失敗しました: %w", err)
	}

	poller, err := generator.NewPoller(client, cfg.Polling.Timeout, cfg.Polling.RetryInterval, generator.WithRecorder(m))
	if err != nil {
		return nil, err
	}
	gen, err := generator.NewVideoGenerator(builder, client, poller, m, builder.Mode())
	if err != nil {
		return nil, err
	}

	parser, err := bot.NewParser(cfg.Triggers.TextToVideo, cfg.Triggers.ImageToVideo)
	if err != nil {
		return nil, err
	}

	var loaderOpts []media.LoaderOption
	if cfg.Media.CacheSize > 0 {
		loaderOpts = append(loaderOpts, media.WithCache(media.NewLRUCache(cfg.Media.CacheSize, cfg.Media.CacheTTL), cfg.Media.CacheTTL))
	}
	res.remote, err = newRemoteIO(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("リモートストレージクライアントの初期化に失敗しました: %w", err)
	}
	if res.remote != nil {
		reader, err := res.remote.InputReader()
		if err != nil {
			return nil, fmt.Errorf("リモートReaderの取得に失敗しました: %w", err)
		}
		loaderOpts = append(loaderOpts, media.WithRemoteReader(reader))
	}
	loader, err := media.NewLoader(hc, loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("メディアローダーの初期化に失敗しました: %w", err)
	}

	plugin, err := bot.NewPlugin(bot.Options{
		Parser:    parser,
		Generator: gen,
		Loader:    loader,
		Avatars:   media.NewAvatarResolver(cfg.Media.AvatarTemplate),
		Messenger: messenger,
		Recorder:  m,
		Resources: res,
	})
	if err != nil {
		return nil, err
	}
	return &app{plugin: plugin, registry: registry}, nil
}
