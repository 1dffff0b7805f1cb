package kms

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
)

var _ service.KeyAuthority = (*HKDFKeyAuthority)(nil)

const shareInfoPrefix = "seal-key-share"

// HKDFKeyAuthority derives a key share per (scope, policy id) from the master secret with
// HKDF-SHA3-256. The same pair always yields the same share.
type HKDFKeyAuthority struct {
	master   []byte
	masterID string
	cache    *gocache.Cache
	metrics  service.Metrics
}

// NewHKDFKeyAuthority takes ownership of master. A positive cacheTTL keeps derived shares in
// memory for that long.
func NewHKDFKeyAuthority(master []byte, cacheTTL time.Duration) (*HKDFKeyAuthority, error) {
	if len(master) != constants.MasterSecretLength {
		return nil, fmt.Errorf("master secret must be %d bytes", constants.MasterSecretLength)
	}
	a := &HKDFKeyAuthority{
		master:   master,
		masterID: masterID(master),
		metrics:  service.NoopMetrics{},
	}
	if cacheTTL > 0 {
		a.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return a, nil
}

// WithMetrics reports share cache hits and misses to m.
func (a *HKDFKeyAuthority) WithMetrics(m service.Metrics) *HKDFKeyAuthority {
	if m != nil {
		a.metrics = m
	}
	return a
}

// LoadKeyAuthority reads the master secret from src and builds the authority.
func LoadKeyAuthority(ctx context.Context, src MasterSecretSource, cacheTTL time.Duration) (*HKDFKeyAuthority, error) {
	master, err := src.LoadMasterSecret(ctx)
	if err != nil {
		return nil, err
	}
	return NewHKDFKeyAuthority(master, cacheTTL)
}

// DeriveKeyShare implements service.KeyAuthority. The returned slice is owned by the caller.
func (a *HKDFKeyAuthority) DeriveKeyShare(ctx context.Context, scope, id models.ObjectID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cacheKey := scope.String() + "/" + id.String()
	if a.cache != nil {
		v, ok := a.cache.Get(cacheKey)
		a.metrics.RecordCacheAccess("key_share", ok)
		if ok {
			return append([]byte(nil), v.([]byte)...), nil
		}
	}

	info := make([]byte, 0, len(shareInfoPrefix)+len(id))
	info = append(info, shareInfoPrefix...)
	info = append(info, id[:]...)

	share := make([]byte, constants.KeyShareLength)
	r := hkdf.New(sha3.New256, a.master, scope[:], info)
	if _, err := io.ReadFull(r, share); err != nil {
		return nil, fmt.Errorf("derive key share: %w", err)
	}

	if a.cache != nil {
		a.cache.SetDefault(cacheKey, append([]byte(nil), share...))
	}
	return share, nil
}

// MasterID implements service.KeyAuthority.
func (a *HKDFKeyAuthority) MasterID() string {
	return a.masterID
}

// masterID is a public commitment to the master secret.
func masterID(master []byte) string {
	h, _ := blake2b.New256([]byte("seal-master-id"))
	h.Write(master)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
