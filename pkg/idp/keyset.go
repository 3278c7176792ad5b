package idp

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// ErrUnknownKey means the token references a key id the provider is not
// currently publishing, even after a refetch.
var ErrUnknownKey = errors.New("token signed with unknown key id")

// KeySet caches the provider's published verification keys. It is an owned
// object, not package state: the TTL forces periodic refetches and an unknown
// kid triggers an immediate one, so key rotation converges without a restart.
type KeySet struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet builds a key set cache for the given JWKS URL.
func NewKeySet(url string, ttl time.Duration) (*KeySet, error) {
	if url == "" {
		return nil, errors.New("key set url is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &KeySet{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Key returns the public key for the given key id, refetching the set when
// the cache is stale or the kid is not cached yet.
func (ks *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrUnknownKey
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.fresh() {
		if key, ok := ks.keys[kid]; ok {
			return key, nil
		}
	}

	if err := ks.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrUnknownKey
}

func (ks *KeySet) fresh() bool {
	return ks.keys != nil && ks.now().Sub(ks.fetchedAt) < ks.ttl
}

func (ks *KeySet) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching key set: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key set endpoint returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading key set: %w", err)
	}

	keys, err := parseJWKS(raw)
	if err != nil {
		return err
	}

	ks.keys = keys
	ks.fetchedAt = ks.now()
	return nil
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseJWKS(raw []byte) (map[string]*rsa.PublicKey, error) {
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing key set: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, errors.New("key set contains no keys")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.Kty != "RSA" || key.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key %s: %w", key.Kid, err)
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable RSA keys")
	}
	return keys, nil
}

func rsaKeyFromJWK(key jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
