package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dairykeeper/internal/cryptox"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

// ErrCorruptSnapshot is returned when persisted bytes cannot be turned back
// into a snapshot, including when a sealed snapshot fails authentication.
var ErrCorruptSnapshot = errors.New("corrupt entitlement snapshot")

// Codec serializes snapshots for the durable store.
type Codec interface {
	Encode(s entitlements.Snapshot) ([]byte, error)
	Decode(b []byte) (entitlements.Snapshot, error)
}

// JSONCodec stores the snapshot as plain JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(s entitlements.Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func (JSONCodec) Decode(b []byte) (entitlements.Snapshot, error) {
	var s entitlements.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return entitlements.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

var (
	sealedMagic = []byte("DKS1")
	sealedSalt  = []byte("dairykeeper/entitlements/snapshot")
)

// SealedCodec encrypts the JSON snapshot with AES-GCM so that editing the
// stored bytes cannot unlock tabs. The namespace is bound as additional data,
// which stops one user's snapshot from being replayed under another key.
type SealedCodec struct {
	key       []byte
	namespace []byte
}

// NewSealedCodec derives the sealing key from secret.
func NewSealedCodec(secret, namespace string) (*SealedCodec, error) {
	key, err := cryptox.DeriveKey([]byte(secret), sealedSalt)
	if err != nil {
		return nil, fmt.Errorf("derive snapshot key: %w", err)
	}
	return &SealedCodec{key: key, namespace: []byte(namespace)}, nil
}

func (c *SealedCodec) Encode(s entitlements.Snapshot) ([]byte, error) {
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	sealed, err := cryptox.Seal(c.key, plain, c.namespace)
	if err != nil {
		return nil, fmt.Errorf("seal snapshot: %w", err)
	}
	return append(append([]byte{}, sealedMagic...), sealed...), nil
}

func (c *SealedCodec) Decode(b []byte) (entitlements.Snapshot, error) {
	if !bytes.HasPrefix(b, sealedMagic) {
		return entitlements.Snapshot{}, fmt.Errorf("%w: not sealed", ErrCorruptSnapshot)
	}
	plain, err := cryptox.Open(c.key, b[len(sealedMagic):], c.namespace)
	if err != nil {
		return entitlements.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return JSONCodec{}.Decode(plain)
}
