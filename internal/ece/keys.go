// Package ece holds the user agent side of Web Push message encryption:
// the subscription key material and RFC 8291 aes128gcm decryption.
package ece

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"io"
)

const authSecretLen = 16

// Keys is the key material behind one push subscription.
type Keys struct {
	Auth    []byte
	Private *ecdh.PrivateKey
}

// GenerateKeys creates a fresh auth secret and P-256 key pair.
func GenerateKeys() (*Keys, error) {
	auth := make([]byte, authSecretLen)
	if _, err := io.ReadFull(rand.Reader, auth); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate p256 key: %w", err)
	}
	return &Keys{Auth: auth, Private: priv}, nil
}

// LoadKeys restores keys saved with PrivateBytes.
func LoadKeys(auth, private []byte) (*Keys, error) {
	if len(auth) != authSecretLen {
		return nil, fmt.Errorf("auth secret must be %d bytes, got %d", authSecretLen, len(auth))
	}
	priv, err := ecdh.P256().NewPrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("load p256 key: %w", err)
	}
	return &Keys{Auth: auth, Private: priv}, nil
}

// P256dh returns the uncompressed public key advertised to the application server.
func (k *Keys) P256dh() []byte {
	return k.Private.PublicKey().Bytes()
}

func (k *Keys) PrivateBytes() []byte {
	return k.Private.Bytes()
}
