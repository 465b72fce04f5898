package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const pepperLength = 32

// LoadOrGeneratePepper reads the pepper stored at path, generating and
// persisting a new one when the file does not exist yet.
func LoadOrGeneratePepper(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("cryptox: pepper file path is empty")
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("cryptox: create pepper dir: %w", err)
	}
	raw := make([]byte, pepperLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	pepper := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, pepper, 0600); err != nil {
		return nil, fmt.Errorf("cryptox: write pepper: %w", err)
	}
	return pepper, nil
}
