package media

import (
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"go.uber.org/fx"
)

// Module provides the media handlers to the worker runtime
var Module = fx.Module("media",
	fx.Provide(
		worker.AsRegistration(NewThumbnailRegistration),
		worker.AsRegistration(NewHashRegistration),
	),
)

// NewThumbnailRegistration binds the thumbnail handler
func NewThumbnailRegistration(log *logger.Logger) worker.Registration {
	return worker.Registration{Type: TypeThumbnail, Handler: NewThumbnailer(log)}
}

// NewHashRegistration binds the hash handler
func NewHashRegistration(log *logger.Logger) worker.Registration {
	return worker.Registration{Type: TypeHash, Handler: NewHasher(log)}
}

// Register adds every media handler to rt
func Register(rt *worker.Runtime, log *logger.Logger) {
	for _, reg := range []worker.Registration{NewThumbnailRegistration(log), NewHashRegistration(log)} {
		rt.Register(reg.Type, reg.Handler)
	}
}
