package app

import (
	"context"

	"github.com/marmos91/rapid/internal/logger"
)

// The app logs through the process logger unless silenced.

func (a *App) debug(ctx context.Context, msg string, args ...any) {
	if !a.opts.Silent {
		logger.DebugCtx(ctx, msg, args...)
	}
}

func (a *App) info(ctx context.Context, msg string, args ...any) {
	if !a.opts.Silent {
		logger.InfoCtx(ctx, msg, args...)
	}
}

func (a *App) warn(ctx context.Context, msg string, args ...any) {
	if !a.opts.Silent {
		logger.WarnCtx(ctx, msg, args...)
	}
}

func (a *App) logError(ctx context.Context, msg string, args ...any) {
	if !a.opts.Silent {
		logger.ErrorCtx(ctx, msg, args...)
	}
}
