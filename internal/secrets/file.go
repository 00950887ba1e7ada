package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures the JSON-file secrets backend.
type FileConfig struct {
	// Path to the secrets file, e.g. .docsift/secrets.json.
	Path string
	// CreateIfMissing writes an empty store on first use.
	CreateIfMissing bool
}

// FileProvider keeps secrets in a flat JSON file on disk. It exists for
// local development, e.g. running docsift against a local qdrant without
// exporting DOCSIFT_EMBEDDING_API_KEY; deployments use the env backend.
type FileProvider struct {
	config *FileConfig
	mu     sync.RWMutex
	data   map[string]string
}

// NewFileProvider opens the secrets file at config.Path. A missing file
// is not an error: with CreateIfMissing an empty store is written,
// otherwise the store starts empty and the first Set creates the file.
func NewFileProvider(config *FileConfig) (*FileProvider, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("secrets: file path required")
	}

	p := &FileProvider{
		config: config,
		data:   make(map[string]string),
	}

	err := p.read()
	switch {
	case err == nil:
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read secrets file: %w", err)
	case config.CreateIfMissing:
		if err := p.write(); err != nil {
			return nil, fmt.Errorf("create secrets file: %w", err)
		}
	}

	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return val, nil
}

func (p *FileProvider) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = value
	return p.write()
}

func (p *FileProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.data, key)
	return p.write()
}

// Reload re-reads the file, picking up edits made outside this process.
func (p *FileProvider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read()
}

func (p *FileProvider) read() error {
	data, err := os.ReadFile(p.config.Path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &p.data)
}

func (p *FileProvider) write() error {
	if err := os.MkdirAll(filepath.Dir(p.config.Path), 0700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}

	data, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner-only: the file holds API keys in the clear.
	return os.WriteFile(p.config.Path, data, 0600)
}
