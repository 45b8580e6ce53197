package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryUpload struct {
	key         string
	contentType string
	parts       map[int][]byte
}

type memoryObject struct {
	data         []byte
	etag         string
	contentType  string
	lastModified time.Time
}

// MemoryBackend keeps objects in memory. It is meant for local development and tests.
type MemoryBackend struct {
	baseURL string
	uploads map[string]*memoryUpload
	objects map[string]*memoryObject
	mu      sync.Mutex
}

// NewMemoryBackend creates a backend whose presigned URLs point at baseURL
func NewMemoryBackend(baseURL string) *MemoryBackend {
	return &MemoryBackend{
		baseURL: baseURL,
		uploads: make(map[string]*memoryUpload),
		objects: make(map[string]*memoryObject),
	}
}

func (m *MemoryBackend) CreateMultipartUpload(ctx context.Context, params *CreateMultipartUploadParams) (string, error) {
	if !ValidateKey(params.Key) {
		return "", ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	uploadID := uuid.NewString()
	m.uploads[uploadID] = &memoryUpload{
		key:         params.Key,
		contentType: params.ContentType,
		parts:       make(map[int][]byte),
	}
	return uploadID, nil
}

func (m *MemoryBackend) UploadPart(ctx context.Context, params *UploadPartParams) (*UploadPartResponse, error) {
	if params.PartNumber < MinPartNumber || params.PartNumber > MaxPartNumber || params.Size <= 0 {
		return nil, ErrInvalidPart
	}

	data, err := io.ReadAll(io.LimitReader(params.Body, params.Size+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != params.Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPart, len(data), params.Size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	upload, ok := m.uploads[params.UploadID]
	if !ok || upload.key != params.Key {
		return nil, ErrUploadNotFound
	}
	upload.parts[params.PartNumber] = data

	return &UploadPartResponse{PartNumber: params.PartNumber, ETag: md5Hex(data)}, nil
}

func (m *MemoryBackend) CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartUploadParams) (*PutObjectResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	upload, ok := m.uploads[params.UploadID]
	if !ok || upload.key != params.Key {
		return nil, ErrUploadNotFound
	}

	var buf bytes.Buffer
	for _, part := range params.Parts {
		data, ok := upload.parts[part.PartNumber]
		if !ok || md5Hex(data) != part.ETag {
			return nil, fmt.Errorf("%w: part %d", ErrInvalidPart, part.PartNumber)
		}
		buf.Write(data)
	}

	obj := &memoryObject{
		data:         buf.Bytes(),
		etag:         fmt.Sprintf("%s-%d", md5Hex(buf.Bytes()), len(params.Parts)),
		contentType:  upload.contentType,
		lastModified: time.Now().UTC(),
	}
	m.objects[params.Key] = obj
	delete(m.uploads, params.UploadID)

	return &PutObjectResponse{
		Key:          params.Key,
		ETag:         obj.etag,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}

func (m *MemoryBackend) AbortMultipartUpload(ctx context.Context, key string, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	upload, ok := m.uploads[uploadID]
	if !ok || upload.key != key {
		return ErrUploadNotFound
	}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemoryBackend) GetObjectPresigned(ctx context.Context, key string, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	return m.baseURL + "/" + url.PathEscape(key) + "?expires=" + url.QueryEscape(time.Now().Add(DefaultDownloadExpiry).Format(time.RFC3339)), nil
}

func (m *MemoryBackend) DeleteObject(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	delete(m.objects, key)
	return ok, nil
}

// Object returns the content of a completed object
func (m *MemoryBackend) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// OpenUploads is the number of multipart uploads neither completed nor aborted
func (m *MemoryBackend) OpenUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

var _ IBlobBackend = (*MemoryBackend)(nil)
