package storage

import (
	"context"
	"testing"

	infraconfig "github.com/factuhub/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3BlobStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *infraconfig.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &infraconfig.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &infraconfig.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &infraconfig.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3BlobStorage(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewS3BlobStorage_EndpointDefaults(t *testing.T) {
	cfg := &infraconfig.StorageConfig{
		Bucket:    "factuhub-verifactu",
		AccessKey: "key",
		SecretKey: "secret",
	}
	storage, err := NewS3BlobStorage(cfg)
	require.NoError(t, err)
	assert.Equal(t, "factuhub-verifactu", storage.GetBucket())
}

func TestMemoryBlobStorage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStorage()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "verifactu/t1/1.xml", []byte("<xml/>"), "application/xml"))
		data, err := store.Get(ctx, "verifactu/t1/1.xml")
		require.NoError(t, err)
		assert.Equal(t, []byte("<xml/>"), data)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "verifactu/nope.xml")
		assert.ErrorContains(t, err, "object not found")
	})

	t.Run("empty key rejected", func(t *testing.T) {
		assert.Error(t, store.Put(ctx, "", []byte("x"), "application/xml"))
	})

	t.Run("stored data is isolated from caller mutation", func(t *testing.T) {
		buf := []byte("original")
		require.NoError(t, store.Put(ctx, "k", buf, "application/xml"))
		buf[0] = 'X'
		data, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), data)
	})
}
