package repo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealPrefix = "sb1:"

// SealedRepository encrypts API credentials and the Torob key before they
// reach the wrapped repository and decrypts them on the way out. Values
// stored before sealing was enabled are returned unchanged.
type SealedRepository struct {
	Repository
	key [32]byte
}

// NewSealed wraps inner with a 32-byte secretbox key.
func NewSealed(inner Repository, key []byte) (*SealedRepository, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("seal key must be 32 bytes, got %d", len(key))
	}
	s := &SealedRepository{Repository: inner}
	copy(s.key[:], key)
	return s, nil
}

// GetAccount returns the account with credentials opened.
func (s *SealedRepository) GetAccount(ctx context.Context, chatID int64) (*Account, error) {
	acc, err := s.Repository.GetAccount(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.open(acc)
}

// UpsertAccount seals credentials in u before merging.
func (s *SealedRepository) UpsertAccount(ctx context.Context, chatID int64, u AccountUpdate) (*Account, error) {
	var err error
	if u.APIKey, err = s.sealField(u.APIKey); err != nil {
		return nil, err
	}
	if u.APISecret, err = s.sealField(u.APISecret); err != nil {
		return nil, err
	}
	if u.TorobAPIKey, err = s.sealField(u.TorobAPIKey); err != nil {
		return nil, err
	}
	acc, err := s.Repository.UpsertAccount(ctx, chatID, u)
	if err != nil {
		return nil, err
	}
	return s.open(acc)
}

func (s *SealedRepository) open(acc *Account) (*Account, error) {
	var err error
	if acc.APIKey, err = s.openField(acc.APIKey); err != nil {
		return nil, fmt.Errorf("open api key: %w", err)
	}
	if acc.APISecret, err = s.openField(acc.APISecret); err != nil {
		return nil, fmt.Errorf("open api secret: %w", err)
	}
	if acc.TorobAPIKey, err = s.openField(acc.TorobAPIKey); err != nil {
		return nil, fmt.Errorf("open torob api key: %w", err)
	}
	return acc, nil
}

func (s *SealedRepository) sealField(v *string) (*string, error) {
	// Blank values stay unsealed so HasCompleteCredentials still sees them as blank.
	if v == nil || strings.TrimSpace(*v) == "" {
		return v, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("seal nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(*v), &nonce, &s.key)
	sealed := sealPrefix + base64.RawStdEncoding.EncodeToString(box)
	return &sealed, nil
}

func (s *SealedRepository) openField(v *string) (*string, error) {
	if v == nil || !strings.HasPrefix(*v, sealPrefix) {
		return v, nil
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(*v, sealPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	if len(box) < 24+secretbox.Overhead {
		return nil, errors.New("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed value failed authentication")
	}
	out := string(plain)
	return &out, nil
}
