package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"mediaq/internal/pkg/logctx"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ThumbnailRequest is the payload of a thumbnail task
type ThumbnailRequest struct {
	Input  string `json:"input" validate:"required"`
	Output string `json:"output" validate:"required"`
	Width  int    `json:"width" validate:"gte=0"`
	Height int    `json:"height" validate:"gte=0"`
	// Crop fills the exact box, cutting from the center. It needs both dimensions.
	Crop bool `json:"crop"`
	// Format overrides the format implied by the output extension
	Format  string `json:"format" validate:"omitempty,oneof=jpg jpeg png gif tif tiff bmp"`
	Quality int    `json:"quality" validate:"omitempty,gte=1,lte=100"`
}

// ThumbnailResult describes the written thumbnail
type ThumbnailResult struct {
	Output string `json:"output"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Thumbnailer renders resized copies of images
type Thumbnailer struct {
	logger   *logger.Logger
	validate *validator.Validate
}

// NewThumbnailer creates the thumbnail handler
func NewThumbnailer(log *logger.Logger) *Thumbnailer {
	return &Thumbnailer{logger: log, validate: validator.New()}
}

// Process implements worker.Handler
func (h *Thumbnailer) Process(ctx context.Context, task *worker.Task) (any, error) {
	var req ThumbnailRequest
	if err := bind(task, h.validate, &req); err != nil {
		return nil, err
	}
	if req.Crop && (req.Width == 0 || req.Height == 0) {
		return nil, errors.New("crop needs both width and height")
	}

	format, err := outputFormat(req)
	if err != nil {
		return nil, err
	}

	log := logctx.Logger(ctx, h.logger)
	log.Verbose("Rendering thumbnail",
		zap.String("input", req.Input),
		zap.Int("width", req.Width),
		zap.Int("height", req.Height),
		zap.Bool("crop", req.Crop),
	)

	src, err := imaging.Open(req.Input, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if err := sendProgress(task, "decoded", 33); err != nil {
		return nil, err
	}

	thumb := resize(src, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sendProgress(task, "resized", 66); err != nil {
		return nil, err
	}

	if err := save(thumb, req.Output, format, req.Quality); err != nil {
		return nil, err
	}
	if err := sendProgress(task, "saved", 100); err != nil {
		return nil, err
	}

	bounds := thumb.Bounds()
	return ThumbnailResult{
		Output: req.Output,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format.String(),
	}, nil
}

func outputFormat(req ThumbnailRequest) (imaging.Format, error) {
	if req.Format != "" {
		return imaging.FormatFromExtension(req.Format)
	}
	format, err := imaging.FormatFromFilename(req.Output)
	if err != nil {
		return 0, fmt.Errorf("cannot infer format from %q: %w", req.Output, err)
	}
	return format, nil
}

func resize(src image.Image, req ThumbnailRequest) *image.NRGBA {
	switch {
	case req.Crop:
		return imaging.Fill(src, req.Width, req.Height, imaging.Center, imaging.Lanczos)
	case req.Width > 0 && req.Height > 0:
		return imaging.Fit(src, req.Width, req.Height, imaging.Lanczos)
	case req.Width > 0 || req.Height > 0:
		return imaging.Resize(src, req.Width, req.Height, imaging.Lanczos)
	default:
		return imaging.Clone(src)
	}
}

// save writes through a temporary file so readers never see a partial thumbnail
func save(img image.Image, path string, format imaging.Format, quality int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".thumb-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var opts []imaging.EncodeOption
	if quality > 0 {
		opts = append(opts, imaging.JPEGQuality(quality))
	}
	if err := imaging.Encode(tmp, img, format, opts...); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
