package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Yumeka433/igdl/internal/artifact"
	"github.com/Yumeka433/igdl/internal/config"
	"github.com/Yumeka433/igdl/internal/cookies"
	igdlhttp "github.com/Yumeka433/igdl/internal/http"
	"github.com/Yumeka433/igdl/internal/logger"
	"github.com/Yumeka433/igdl/internal/metrics"
	"github.com/Yumeka433/igdl/internal/progress"
	"github.com/Yumeka433/igdl/internal/session"
)

type fetchFlags struct {
	configPath         string
	envFile            string
	apiBase            string
	username           string
	password           string
	cookiesPath        string
	cookiesFromBrowser bool
	method             string
	output             string
	name               string
	store              string
	readSize           string
	buffered           bool
	headerTimeout      string
	metricsAddr        string
	logLevel           string
	logJSON            bool
	noProgress         bool
}

func newFetchCmd() *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <instagram-url>",
		Short: "Download the media behind an Instagram URL",
		Example: `  igdl fetch https://www.instagram.com/reel/ABC123/ --api-base https://dl.example.com/api
  igdl fetch https://www.instagram.com/p/XYZ/ --cookies cookies.txt --output ./media
  igdl fetch https://www.instagram.com/reel/ABC123/ --cookies-from-browser --output s3://bucket?region=eu-west-1`,
		Args: argsWithCode(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	fl.StringVar(&f.envFile, "env-file", "", "Load IGDL_* variables from this file (default .env)")
	fl.StringVar(&f.apiBase, "api-base", "", "Base URL of the download API (e.g. https://host/api)")
	fl.StringVarP(&f.username, "username", "u", "", "Instagram username, sent as X-Username")
	fl.StringVarP(&f.password, "password", "p", "", "Instagram password, sent as X-Password")
	fl.StringVar(&f.cookiesPath, "cookies", "", "Netscape cookies.txt to attach (forces POST)")
	fl.BoolVar(&f.cookiesFromBrowser, "cookies-from-browser", false, "Attach cookies read from local browsers (forces POST)")
	fl.StringVarP(&f.method, "method", "X", "", "Request method: GET or POST")
	fl.StringVarP(&f.output, "output", "o", "", "Output directory or bucket URL")
	fl.StringVarP(&f.name, "name", "n", "", "Save under this name instead of the server's filename")
	fl.StringVar(&f.store, "store", "", "Bucket URL holding artifacts between sessions (default mem://)")
	fl.StringVar(&f.readSize, "read-size", "", "Size of each incremental read (e.g. 32KB, 1MB)")
	fl.BoolVar(&f.buffered, "buffered", false, "Read the response in one piece instead of streaming")
	fl.StringVar(&f.headerTimeout, "header-timeout", "", "Give up when response headers take longer than this (e.g. 30s)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	fl.BoolVar(&f.logJSON, "log-json", false, "Write logs as JSON")
	fl.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress line")

	return cmd
}

// loadConfig layers the config file, the environment and the flags, in that
// order.
func loadConfig(f *fetchFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		fileCfg, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}

	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := config.Config{
		APIBase:     f.apiBase,
		Output:      f.output,
		Store:       f.store,
		Method:      f.method,
		Username:    f.username,
		Password:    f.password,
		Cookies:     f.cookiesPath,
		Buffered:    f.buffered,
		LogLevel:    f.logLevel,
		LogJSON:     f.logJSON,
		MetricsAddr: f.metricsAddr,
	}
	if f.readSize != "" {
		size, err := progress.ParseBytes(f.readSize)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --read-size: %w", err)
		}
		override.ReadSize = size
	}
	if f.headerTimeout != "" {
		d, err := time.ParseDuration(f.headerTimeout)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --header-timeout: %w", err)
		}
		override.HeaderTimeout = d
	}

	cfg = cfg.Merge(override)
	if f.noProgress {
		cfg.Progress.Show = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runFetch(cmd *cobra.Command, targetURL string, f *fetchFlags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Output: cmd.ErrOrStderr(),
		JSON:   cfg.LogJSON,
	})
	if err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	attachment, err := loadAttachment(ctx, cfg.Cookies, f.cookiesFromBrowser, targetURL, log)
	if err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	req, err := igdlhttp.BuildRequest(igdlhttp.Params{
		TargetURL:  targetURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Method:     cfg.Method,
		Attachment: attachment,
	})
	if err != nil {
		return err
	}

	clientOpts := igdlhttp.DefaultOptions()
	clientOpts.APIBase = cfg.APIBase
	clientOpts.HeaderTimeout = cfg.HeaderTimeout
	clientOpts.ReadSize = int(cfg.ReadSize)
	clientOpts.Buffered = cfg.Buffered
	clientOpts.DefaultFilename = cfg.DefaultFilename
	clientOpts.Logger = log
	client := igdlhttp.NewClient(clientOpts)

	store, err := artifact.OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return withCode(ExitStorageError, err)
	}
	defer store.Close()

	var observers []session.Observer

	var reporter *progress.Reporter
	if cfg.Progress.Show {
		reporter = progress.NewReporter(progress.Options{
			Output:    cmd.ErrOrStderr(),
			SourceURL: targetURL,
		})
		observers = append(observers, reporterObserver{reporter})
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return err
		}
		observers = append(observers, collector)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, log); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	ctrl := session.New(client, session.Options{
		Progress:  cfg.Progress.Policy(),
		Store:     store,
		Logger:    log,
		Observers: observers,
	})
	defer func() {
		if err := ctrl.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to release artifact")
		}
	}()

	// Handle interrupt by cancelling the session; the transfer unwinds
	// through the controller.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\n[igdl] Received interrupt, cancelling...")
			ctrl.Cancel()
		case <-ctx.Done():
		}
	}()

	res, err := ctrl.Start(ctx, req)
	if reporter != nil {
		reporter.Finish(finishStatus(err))
	}
	if err != nil {
		return err
	}

	dst, err := artifact.OpenBucket(ctx, cfg.Output)
	if err != nil {
		return withCode(ExitStorageError, err)
	}
	defer dst.Close()

	name := f.name
	if name == "" {
		name = res.Artifact.Filename
	}
	if err := artifact.Save(ctx, res.Handle, dst, name); err != nil {
		return withCode(ExitStorageError, fmt.Errorf("save artifact: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "[igdl] Saved %s (%s, %s) to %s\n",
		name, progress.FormatBytes(res.Artifact.Size()), res.Artifact.ContentType, cfg.Output)
	return nil
}

// loadAttachment returns the cookies to send with the request: the file at
// path when set, otherwise cookies read from local browsers when asked for.
func loadAttachment(ctx context.Context, path string, fromBrowser bool, targetURL string, log zerolog.Logger) (*igdlhttp.Attachment, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read cookies: %w", err)
		}
		return &igdlhttp.Attachment{Name: filepath.Base(path), Data: data}, nil
	}
	if !fromBrowser {
		return nil, nil
	}

	found, err := cookies.FromBrowser(ctx, targetURL, log)
	if err != nil {
		return nil, err
	}
	return &igdlhttp.Attachment{Name: "cookies.txt", Data: cookies.Netscape(found)}, nil
}

func finishStatus(err error) string {
	switch {
	case err == nil:
		return "done"
	case igdlhttp.IsCancelled(err):
		return "aborted"
	default:
		return "failed: " + igdlhttp.Describe(err)
	}
}

// reporterObserver drives a terminal progress line from session states.
type reporterObserver struct {
	r *progress.Reporter
}

func (o reporterObserver) Observe(s session.State) {
	switch s.Status {
	case session.StatusStarting:
		o.r.Start()
	case session.StatusDownloading, session.StatusDone:
		o.r.Update(s.Received, s.Total, s.Progress)
	}
}
