// Package crypt holds the NaCl box key pairs that identify peers and seal
// their signaling messages.
package crypt

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the size of a key in bytes.
	KeySize = 32
	// NonceSize is the size of the nonce prefixed to every sealed message.
	NonceSize = 24
)

// ErrInvalidMessage is returned when a sealed message cannot be opened.
var ErrInvalidMessage = errors.New("crypt: invalid message")

type (
	// A Key is a public or private curve25519 key.
	Key [KeySize]byte
	// A KeyPair is a peer identity.
	KeyPair struct {
		Public  Key `json:"public" yaml:"public"`
		Private Key `json:"private" yaml:"private"`
	}
)

// ParseKey decodes a base58 key.
func ParseKey(str string) (Key, error) {
	var key Key
	bs, err := base58.Decode(str)
	if err != nil {
		return key, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(bs) != KeySize {
		return key, fmt.Errorf("invalid key length %d", len(bs))
	}
	copy(key[:], bs)
	return key, nil
}

// Valid reports whether key is set.
func (key Key) Valid() bool {
	return key != Key{}
}

func (key Key) String() string {
	return base58.Encode(key[:])
}

// Less orders keys by their encoded form.
func (key Key) Less(other Key) bool {
	return key.String() < other.String()
}

func (key Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(key.String())
}

func (key *Key) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k, err := ParseKey(raw)
	if err != nil {
		return err
	}
	*key = k
	return nil
}

func (key Key) MarshalYAML() (interface{}, error) {
	return key.String(), nil
}

func (key *Key) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	k, err := ParseKey(raw)
	if err != nil {
		return err
	}
	*key = k
	return nil
}

// GenerateKeyPair creates a new random identity.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return KeyPair{Public: *pub, Private: *priv}, nil
}

// Seal encrypts data for peer. The result is the nonce followed by the box.
func (pair KeyPair) Seal(peer Key, data []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	peerKey, privateKey := [KeySize]byte(peer), [KeySize]byte(pair.Private)
	return box.Seal(nonce[:], data, &nonce, &peerKey, &privateKey), nil
}

// Open decrypts a message sealed by peer.
func (pair KeyPair) Open(peer Key, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize+box.Overhead {
		return nil, ErrInvalidMessage
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed)
	peerKey, privateKey := [KeySize]byte(peer), [KeySize]byte(pair.Private)
	opened, ok := box.Open(nil, sealed[NonceSize:], &nonce, &peerKey, &privateKey)
	if !ok {
		return nil, ErrInvalidMessage
	}
	return opened, nil
}
