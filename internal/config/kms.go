package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// NewKMSClient loads the default AWS configuration chain.
func NewKMSClient(ctx context.Context) (*kms.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("Failed to load AWS SDK config", "error", err)
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	slog.Info("Successfully initialized AWS KMS client")
	return kms.NewFromConfig(cfg), nil
}
