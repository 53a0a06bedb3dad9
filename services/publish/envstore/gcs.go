// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore is an ObjectStore backed by a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	BucketName string
}

// NewGCSStore creates a GCS-backed object store.
//
// Description:
//
//	Connects with the service account key at saKeyPath when given, or
//	ambient application-default credentials when saKeyPath is empty.
//
// Inputs:
//
//	ctx - Context for client creation.
//	bucketName - Bucket holding the environment prefixes.
//	saKeyPath - Optional path to a service account key file.
//
// Outputs:
//
//	*GCSStore - Ready-to-use store.
//	error - Non-nil if the key file is missing or the client cannot be built.
func NewGCSStore(ctx context.Context, bucketName, saKeyPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{client: client, BucketName: bucketName}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Write stores data under key. Pages are immutable at the edge only via
// invalidation, so the origin objects are marked no-cache for the CDN's
// origin fetches.
func (s *GCSStore) Write(ctx context.Context, key string, data []byte) error {
	obj := s.client.Bucket(s.BucketName).Object(key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	writer.CacheControl = "public, max-age=3600"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return nil
}

// Read returns the object bytes for key.
func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.BucketName).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return data, nil
}

// Copy duplicates srcKey to dstKey server-side. The destination receives
// exactly the source bytes; no re-render happens on promotion.
func (s *GCSStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	bucket := s.client.Bucket(s.BucketName)
	src := bucket.Object(srcKey)
	dst := bucket.Object(dstKey)

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", srcKey, ErrObjectNotFound)
		}
		return fmt.Errorf("failed to copy GCS object %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// List returns all keys under prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.BucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects under %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete removes the object. A missing key is not an error.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.BucketName).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", key, err)
	}
	return nil
}
