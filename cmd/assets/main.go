package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Velipetroll/Backend-Cloudinary/internal/config"
	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/service"
	"github.com/Velipetroll/Backend-Cloudinary/internal/storage"
	"github.com/Velipetroll/Backend-Cloudinary/pkg/logger"
)

const uploadConcurrency = 4

func classificationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "tipo", Usage: "content type, e.g. tareas", Required: true},
		&cli.StringFlag{Name: "anio", Usage: "school year, e.g. 2024", Required: true},
		&cli.StringFlag{Name: "grado", Usage: "grade, e.g. 5to", Required: true},
	}
}

func classificationFrom(c *cli.Context) domain.Classification {
	return domain.Classification{
		Tipo:  c.String("tipo"),
		Anio:  c.String("anio"),
		Grado: c.String("grado"),
	}
}

// newAssetService builds the same service the HTTP server uses, without a cache.
func newAssetService(c *cli.Context) (*service.AssetService, error) {
	cfg := config.Load()
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	logger.ConfigureOutput(os.Stderr, c.String("log-level"), cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gateway, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}

	return service.NewAssetService(gateway,
		service.WithListMode(storage.ListMode(cfg.Storage.ListMode)),
		service.WithListMax(cfg.Storage.ListMax),
	), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runUpload(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("at least one file is required", 1)
	}

	svc, err := newAssetService(c)
	if err != nil {
		return err
	}
	classification := classificationFrom(c)

	var (
		mu       sync.Mutex
		uploaded = make([]*domain.AssetDescriptor, len(paths))
	)

	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(uploadConcurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			body, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			asset, err := svc.Upload(ctx, domain.UploadRequest{
				Body:           body,
				FileName:       filepath.Base(path),
				MimeType:       http.DetectContentType(body),
				Classification: classification,
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			mu.Lock()
			uploaded[i] = asset
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writeJSON(c.App.Writer, uploaded)
}

func runList(c *cli.Context) error {
	svc, err := newAssetService(c)
	if err != nil {
		return err
	}

	listing, err := svc.List(c.Context, classificationFrom(c))
	if err != nil {
		return err
	}

	return writeJSON(c.App.Writer, map[string]any{
		"folder": listing.Key.String(),
		"count":  len(listing.Assets),
		"images": listing.Assets,
	})
}

func runResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one public_id is required", 1)
	}

	svc, err := newAssetService(c)
	if err != nil {
		return err
	}

	asset, err := svc.Resolve(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	return writeJSON(c.App.Writer, asset)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "assets",
		Usage: "Upload, list and resolve classified files on the configured media host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "storage backend override (cloudinary, minio, memory)",
				EnvVars: []string{"ASSETS_BACKEND"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload files under tipo/anio/grado",
				ArgsUsage: "FILE...",
				Flags:     classificationFlags(),
				Action:    runUpload,
			},
			{
				Name:   "list",
				Usage:  "List files stored under tipo/anio/grado",
				Flags:  classificationFlags(),
				Action: runList,
			},
			{
				Name:      "resolve",
				Usage:     "Print the descriptor and direct URL of a public_id",
				ArgsUsage: "PUBLIC_ID",
				Action:    runResolve,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("assets command failed")
		os.Exit(1)
	}
}
