// Package main is the entry point for slicemail.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shineum/slicemail/internal/composer"
	"github.com/shineum/slicemail/internal/config"
	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/provider"
	"github.com/shineum/slicemail/internal/server"
	slicetls "github.com/shineum/slicemail/internal/tls"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	envPath := flag.String("env", ".env", "path to a .env file (ignored if missing)")
	headerPath := flag.String("header", "", "header image file")
	bodyPath := flag.String("body", "", "body image file")
	footerPath := flag.String("footer", "", "footer image file")
	bodyLink := flag.String("link", "", "link applied to the body image")
	fileName := flag.String("name", "", "output file name for the file provider")
	serve := flag.Bool("serve", false, "run the HTTP server instead of a one-shot generation")
	flag.Parse()

	// Real environment variables win over the .env file.
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env file", "path", *envPath, "error", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// In one-shot mode stdout may carry the document itself.
	logOut := io.Writer(os.Stderr)
	if *serve {
		logOut = os.Stdout
	}
	setupLogger(cfg.Logging.Level, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	up, err := selectUploader(ctx, cfg)
	if err != nil {
		slog.Error("failed to create uploader", "error", err)
		os.Exit(1)
	}

	prov, err := selectProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	comp := composer.New(up)

	if *serve {
		if err := runServer(ctx, cfg, comp, prov); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
		slog.Info("slicemail stopped")
		return
	}

	images, err := readImages(map[email.Slot]string{
		email.SlotHeader: *headerPath,
		email.SlotBody:   *bodyPath,
		email.SlotFooter: *footerPath,
	})
	if err != nil {
		slog.Error("failed to read images", "error", err)
		os.Exit(1)
	}

	result, err := comp.Generate(ctx, composer.Request{Images: images, BodyLink: *bodyLink})
	if err != nil {
		slog.Error("failed to generate email", "error", err)
		os.Exit(1)
	}

	name := cfg.Output.FileName
	if *fileName != "" {
		name = *fileName
	}

	msg := &email.Email{
		To:       cfg.Preview.To,
		Cc:       cfg.Preview.Cc,
		Subject:  cfg.Preview.Subject,
		HtmlBody: result.HTML,
		FileName: name,
	}
	if err := prov.Send(ctx, msg); err != nil {
		slog.Error("failed to deliver email", "provider", prov.Name(), "error", err)
		os.Exit(1)
	}

	slog.Info("email delivered", "provider", prov.Name(), "slots", len(result.Images))
}

// runServer serves the HTTP shell until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, gen server.Generator, prov provider.Provider) error {
	var tlsConfig *tls.Config
	tlsMode := "off"
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = slicetls.Config(slicetls.Options{
			CertFile: cfg.TLS.CertFile,
			KeyFile:  cfg.TLS.KeyFile,
			Hosts:    cfg.TLS.Hosts,
		})
		if err != nil {
			return fmt.Errorf("failed to setup TLS: %w", err)
		}
		tlsMode = "self-signed"
		if cfg.TLS.CertFile != "" {
			tlsMode = "file"
		}
	}

	srv := server.New(server.ServerConfig{
		ListenAddr:    cfg.HTTP.Listen,
		Generator:     gen,
		Provider:      prov,
		TLSConfig:     tlsConfig,
		AuthUsername:  cfg.HTTP.Username,
		AuthPassword:  cfg.HTTP.Password,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		Subject:       cfg.Preview.Subject,
		To:            cfg.Preview.To,
		Cc:            cfg.Preview.Cc,
		FileName:      cfg.Output.FileName,
		Logger:        slog.Default(),
	})

	slog.Info("starting slicemail",
		"listen", cfg.HTTP.Listen,
		"provider", prov.Name(),
		"auth_enabled", cfg.AuthEnabled(),
		"tls_mode", tlsMode,
	)

	return srv.ListenAndServe(ctx)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string, w io.Writer) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// readImages loads the image files given on the command line. Empty paths
// are skipped.
func readImages(paths map[email.Slot]string) ([]email.Image, error) {
	var images []email.Image
	for _, slot := range email.Slots() {
		path := paths[slot]
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s image: %w", slot, err)
		}
		images = append(images, email.Image{
			Slot:     slot,
			Filename: filepath.Base(path),
			Data:     data,
		})
	}
	return images, nil
}
