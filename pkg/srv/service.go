package srv

import (
	"context"
	"errors"

	"github.com/sandevgo/recall/pkg/log"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts every service and blocks until ctx is cancelled or any service
// returns from Start. Services are then shut down in reverse order.
func Run(ctx context.Context, services []Service) error {
	logger := log.FromCtx(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(services))

	for _, service := range services {
		go func(service Service) {
			err := service.Start(ctx)
			if err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msgf("%T stopped with error", service)
			}
			errs <- err
			cancel()
		}(service)
	}

	<-ctx.Done()
	ShutdownServices(context.WithoutCancel(ctx), services)

	select {
	case err := <-errs:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return nil
	}
}

func ShutdownServices(ctx context.Context, services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
