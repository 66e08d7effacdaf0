package push

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmaster/internal/docstore"
)

type reverseCipher struct{}

func (reverseCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return "sealed:" + reverse(plaintext), nil
}

func (reverseCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return reverse(strings.TrimPrefix(ciphertext, "sealed:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestParsePermission(t *testing.T) {
	for _, s := range []string{"default", "granted", "denied"} {
		p, err := ParsePermission(s)
		require.NoError(t, err)
		assert.Equal(t, Permission(s), p)
	}

	_, err := ParsePermission("maybe")
	assert.Error(t, err)
}

func TestRegistryPermissionDefaultsWithoutDevice(t *testing.T) {
	r := NewRegistry(docstore.NewMemory(), reverseCipher{})

	p, err := r.Permission(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, PermissionDefault, p)

	_, err = r.Token(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestRegistryStoresSealedToken(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	r := NewRegistry(store, reverseCipher{})

	require.NoError(t, r.Register(ctx, "u1", "fcm-token", PermissionGranted))

	doc, err := store.Get(ctx, DevicesCollection, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sealed:nekot-mcf", doc.Data["token"])

	p, err := r.Permission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)

	token, err := r.Token(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fcm-token", token)
}

func TestRegistryDeniedHidesToken(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(docstore.NewMemory(), reverseCipher{})

	require.NoError(t, r.Register(ctx, "u1", "fcm-token", PermissionGranted))
	require.NoError(t, r.Register(ctx, "u1", "", PermissionDenied))

	p, err := r.Permission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, p)

	_, err = r.Token(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestAbsoluteLink(t *testing.T) {
	s := &FCMSender{baseURL: "https://app.example.com"}
	assert.Equal(t, "https://app.example.com/projects/p1", s.absoluteLink("/projects/p1"))
	assert.Equal(t, "https://other.example.com/x", s.absoluteLink("https://other.example.com/x"))
	assert.Equal(t, "", s.absoluteLink(""))

	insecure := &FCMSender{baseURL: "http://localhost:3000"}
	assert.Equal(t, "", insecure.absoluteLink("/projects/p1"))
}
