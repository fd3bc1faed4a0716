package storage

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fastygo/dailyquest/usecase"
)

// ErrInvalidRef is returned for references that point outside the upload root.
var ErrInvalidRef = errors.New("storage: invalid proof reference")

// LocalProofStore writes proofs under a directory served at a public base URL.
// References are slash-separated paths relative to that directory.
type LocalProofStore struct {
	root    string
	baseURL string
}

func NewLocalProofStore(root, baseURL string) (*LocalProofStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalProofStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalProofStore) Save(_ context.Context, ownerID string, proof usecase.Proof) (string, error) {
	ref := path.Join(ownerID, uuid.NewString()+extension(proof.Filename))
	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, proof.Data, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *LocalProofStore) Release(_ context.Context, ref string) error {
	full, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalProofStore) URL(_ context.Context, ref string) (string, error) {
	if _, err := s.resolve(ref); err != nil {
		return "", err
	}
	return s.baseURL + "/" + ref, nil
}

func (s *LocalProofStore) Root() string {
	return s.root
}

func (s *LocalProofStore) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if clean == "/" || clean != "/"+ref {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func extension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		return ""
	}
	return ext
}

var _ usecase.ProofStorage = (*LocalProofStore)(nil)
