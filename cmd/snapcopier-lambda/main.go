// Command snapcopier-lambda runs one copy pass per function invocation,
// configured from the indexed environment layout.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/config"
)

func main() {
	log := logger.New(logger.Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Output: os.Stdout,
	})

	h := &handler{
		lookup: os.LookupEnv,
		log:    log,
		provider: func(ctx context.Context, c *config.Config) (registry.Provider, error) {
			awsCfg, err := registry.LoadAWSConfig(ctx, registry.ClientConfig{
				Region:     c.SourceRegion,
				MaxRetries: c.AWS.MaxRetries,
				Timeout:    c.AWS.Timeout,
			})
			if err != nil {
				return nil, err
			}
			return registry.NewClientProvider(awsCfg, log), nil
		},
	}

	lambda.Start(h.Handle)
}
