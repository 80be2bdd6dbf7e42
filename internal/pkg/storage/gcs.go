package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
)

var ErrMissingSigner = errors.New("storage: signed urls need a service account signer")

type GCSOptions struct {
	// Client is built by the caller so credentials and endpoints stay in one place.
	Client *gcs.Client
	// GoogleAccessID and PrivateKey sign download links. Both are required
	// for PresignGet.
	GoogleAccessID string
	PrivateKey     []byte
}

// GCS implements Storage on Google Cloud Storage.
type GCS struct {
	client   *gcs.Client
	accessID string
	key      []byte
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	client := opts.Client
	if client == nil {
		created, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		client = created
	}

	return &GCS{client: client, accessID: opts.GoogleAccessID, key: opts.PrivateKey}, nil
}

func (g *GCS) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata

	if _, err := io.Copy(w, r); err != nil {
		return ObjectInfo{}, errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}

	if attrs := w.Attrs(); attrs != nil {
		return gcsInfo(attrs), nil
	}
	return ObjectInfo{Bucket: bucket, Key: key, Size: opts.Size, ContentType: opts.ContentType}, nil
}

func (g *GCS) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	attrs, err := g.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return ObjectInfo{}, err
	}

	return gcsInfo(attrs), nil
}

// DeleteObject treats a missing object as already deleted, like S3 does.
func (g *GCS) DeleteObject(ctx context.Context, bucket, key string) error {
	err := g.client.Bucket(bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if g.accessID == "" || len(g.key) == 0 {
		return "", ErrMissingSigner
	}

	return gcs.SignedURL(bucket, key, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        time.Now().Add(expiry),
		GoogleAccessID: g.accessID,
		PrivateKey:     g.key,
	})
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func gcsInfo(attrs *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Bucket:      attrs.Bucket,
		Key:         attrs.Name,
		Size:        attrs.Size,
		ETag:        attrs.Etag,
		ContentType: attrs.ContentType,
		UpdatedAt:   attrs.Updated,
	}
}
