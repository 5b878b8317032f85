package adapter

import "context"

// MediaStore is the port for the artifact store (object storage or a local
// directory). Keys are full object names, e.g. "<jobkey>.mp4".
type MediaStore interface {
	// PutFile uploads a local file and returns a URL callers can fetch.
	PutFile(ctx context.Context, key, localPath, contentType string) (string, error)

	// PutBytes writes a small blob (the JSON sidecar).
	PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)

	Exists(ctx context.Context, key string) (bool, error)

	GetBytes(ctx context.Context, key string) ([]byte, error)

	// URL returns a fetchable URL for an existing object.
	URL(ctx context.Context, key string) (string, error)
}
