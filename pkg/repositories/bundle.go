package repositories

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/klauspost/compress/zstd"
)

func encodeBundle(bundle *models.PersistedBundle) ([]byte, error) {
	b, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal persisted data: %w", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress persisted data: %w", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %w", err)
	}

	return compressed.Bytes(), nil
}

func decodeBundle(data []byte) (*models.PersistedBundle, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed persisted data: %w", err)
	}

	bundle := &models.PersistedBundle{}
	if err := json.Unmarshal(b, bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal persisted data: %w", err)
	}

	return bundle, nil
}

func newLoginToken() ([]byte, error) {
	token := make([]byte, LoginTicketSize)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("failed to generate login ticket: %w", err)
	}
	return token, nil
}
