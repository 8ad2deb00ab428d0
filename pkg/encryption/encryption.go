// Copyright 2025 The nimbus-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package encryption seals and opens packet bodies with AES-256-GCM. Every
// payload-carrying control packet on the wire travels as a random 12-byte
// nonce followed by the ciphertext and the 16-byte authentication tag, so an
// encrypted body is always exactly Overhead bytes longer than its plaintext.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required length of the shared secret in bytes.
	KeySize = 32
	// NonceSize is the length of the random nonce prefixed to every sealed
	// body.
	NonceSize = 12
	// TagSize is the length of the GCM authentication tag appended to the
	// ciphertext.
	TagSize = 16
	// Overhead is the total size difference between a sealed body and its
	// plaintext.
	Overhead = NonceSize + TagSize
)

// ErrBadKeySize is returned when the shared secret is not KeySize bytes long.
var ErrBadKeySize = errors.New("encryption: key must be 32 bytes")

// ErrCiphertextTooShort is returned by Decrypt when the input cannot even hold
// the nonce and tag.
var ErrCiphertextTooShort = errors.New("encryption: ciphertext shorter than nonce and tag")

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrBadKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key, returning nonce || ciphertext || tag.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed body produced by Encrypt. It fails when the data has
// been tampered with or was sealed under a different key.
func Decrypt(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < Overhead {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("encryption: open: %w", err)
	}
	return plaintext, nil
}
