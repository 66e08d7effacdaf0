package security

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSAPI is the part of the KMS client used to seal device tokens.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSCipher encrypts push device tokens with an AWS KMS key.
type KMSCipher struct {
	client KMSAPI
	keyID  string
}

func NewKMSCipher(client KMSAPI, keyID string) *KMSCipher {
	return &KMSCipher{client: client, keyID: keyID}
}

func (c *KMSCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	result, err := c.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(c.keyID),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		slog.Error("Failed to encrypt device token", "error", err)
		return "", fmt.Errorf("failed to encrypt device token: %w", err)
	}

	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

func (c *KMSCipher) Decrypt(ctx context.Context, encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		slog.Error("Failed to decode encrypted device token", "error", err)
		return "", fmt.Errorf("failed to decode encrypted device token: %w", err)
	}

	result, err := c.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		slog.Error("Failed to decrypt device token", "error", err)
		return "", fmt.Errorf("failed to decrypt device token: %w", err)
	}

	return string(result.Plaintext), nil
}

// Plaintext stores tokens as given. Used when no KMS key is configured.
type Plaintext struct{}

func (Plaintext) Encrypt(_ context.Context, s string) (string, error) { return s, nil }

func (Plaintext) Decrypt(_ context.Context, s string) (string, error) { return s, nil }
