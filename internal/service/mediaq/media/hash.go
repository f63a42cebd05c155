package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/blake2b"
)

// HashRequest is the payload of a hash task
type HashRequest struct {
	Path string `json:"path" validate:"required"`
}

// HashResult carries the content digests of a file
type HashResult struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
	BLAKE2b string `json:"blake2b"`
}

// Hasher computes content digests used for duplicate detection
type Hasher struct {
	logger   *logger.Logger
	validate *validator.Validate
}

// NewHasher creates the hash handler
func NewHasher(log *logger.Logger) *Hasher {
	return &Hasher{logger: log, validate: validator.New()}
}

// Process implements worker.Handler
func (h *Hasher) Process(ctx context.Context, task *worker.Task) (any, error) {
	var req HashRequest
	if err := bind(task, h.validate, &req); err != nil {
		return nil, err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	sha := sha256.New()
	b2, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	progress := &progressWriter{ctx: ctx, task: task, total: info.Size()}
	n, err := io.Copy(io.MultiWriter(sha, b2, progress), f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := sendProgress(task, "hashed", 100); err != nil {
		return nil, err
	}

	return HashResult{
		Path:    req.Path,
		Size:    n,
		SHA256:  hex.EncodeToString(sha.Sum(nil)),
		BLAKE2b: hex.EncodeToString(b2.Sum(nil)),
	}, nil
}

// progressWriter reports every tenth of the file read and aborts on cancellation
type progressWriter struct {
	ctx      context.Context
	task     *worker.Task
	total    int64
	written  int64
	reported int
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	w.written += int64(len(p))
	if w.total <= 0 {
		return len(p), nil
	}

	percent := int(w.written * 100 / w.total)
	if percent >= 100 || percent < w.reported+10 {
		return len(p), nil
	}
	w.reported = percent - percent%10
	if err := sendProgress(w.task, "hashing", w.reported); err != nil {
		return 0, err
	}
	return len(p), nil
}
