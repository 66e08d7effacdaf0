package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventmaster/internal/docstore"
)

const DevicesCollection = "pushDevices"

var ErrNoDevice = errors.New("no push device registered")

type Device struct {
	Permission Permission `firestore:"permission"`
	Token      string     `firestore:"token"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

// Cipher protects registration tokens at rest.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Registry keeps one browser registration per user in the document store.
type Registry struct {
	store  docstore.Store
	cipher Cipher
}

func NewRegistry(store docstore.Store, cipher Cipher) *Registry {
	return &Registry{store: store, cipher: cipher}
}

func (r *Registry) Register(ctx context.Context, userID, token string, permission Permission) error {
	fields := map[string]interface{}{
		"permission": string(permission),
		"updatedAt":  docstore.ServerTimestamp,
	}
	if token != "" {
		sealed, err := r.cipher.Encrypt(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to encrypt push token: %w", err)
		}
		fields["token"] = sealed
	}

	if err := r.store.Set(ctx, DevicesCollection, userID, fields); err != nil {
		return fmt.Errorf("failed to register push device: %w", err)
	}
	return nil
}

// Permission reports the user's browser permission; users who never
// registered are in the default state.
func (r *Registry) Permission(ctx context.Context, userID string) (Permission, error) {
	device, err := r.device(ctx, userID)
	if errors.Is(err, ErrNoDevice) {
		return PermissionDefault, nil
	}
	if err != nil {
		return "", err
	}
	if device.Permission == "" {
		return PermissionDefault, nil
	}
	return device.Permission, nil
}

// Token returns the decrypted registration token of a user whose permission
// is granted.
func (r *Registry) Token(ctx context.Context, userID string) (string, error) {
	device, err := r.device(ctx, userID)
	if err != nil {
		return "", err
	}
	if device.Permission != PermissionGranted || device.Token == "" {
		return "", ErrNoDevice
	}

	token, err := r.cipher.Decrypt(ctx, device.Token)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt push token: %w", err)
	}
	return token, nil
}

func (r *Registry) device(ctx context.Context, userID string) (*Device, error) {
	doc, err := r.store.Get(ctx, DevicesCollection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNoDevice
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load push device: %w", err)
	}

	var device Device
	if err := doc.DataTo(&device); err != nil {
		return nil, err
	}
	return &device, nil
}
