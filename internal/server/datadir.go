package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type DataPaths struct {
	RootDir  string
	DBPath   string
	SaltPath string
}

func InitDataDir(root string) (DataPaths, error) {
	paths := DataPaths{
		RootDir:  root,
		DBPath:   filepath.Join(root, "slimlytics.sqlite"),
		SaltPath: filepath.Join(root, "ip_salt"),
	}

	if err := os.MkdirAll(paths.RootDir, 0o755); err != nil {
		return paths, fmt.Errorf("create data directory %s: %w", paths.RootDir, err)
	}

	db, err := os.OpenFile(paths.DBPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return paths, fmt.Errorf("create/open sqlite file %s: %w", paths.DBPath, err)
	}
	if err := db.Close(); err != nil {
		return paths, fmt.Errorf("close sqlite file %s: %w", paths.DBPath, err)
	}

	return paths, nil
}

// loadOrCreateSalt returns the IP hashing salt stored at path, generating
// and persisting a random one on first use so hashes stay stable across
// restarts.
func loadOrCreateSalt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		salt := strings.TrimSpace(string(raw))
		if salt == "" {
			return "", fmt.Errorf("ip salt file %s is empty", path)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read ip salt %s: %w", path, err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ip salt: %w", err)
	}
	salt := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(salt+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write ip salt %s: %w", path, err)
	}
	return salt, nil
}
