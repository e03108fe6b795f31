package ece

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltLen   = 16
	headerLen = saltLen + 4 + 1 // salt, rs, idlen
	keyLen    = 16
	nonceLen  = 12
	tagLen    = 16
)

var (
	ErrShortPayload   = errors.New("ece: payload is too short")
	ErrInvalidPadding = errors.New("ece: invalid padding")
)

// header is the RFC 8188 content coding header.
type header struct {
	salt       []byte
	rs         uint32
	keyID      []byte
	ciphertext []byte
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) < headerLen {
		return h, ErrShortPayload
	}
	h.salt = data[:saltLen]
	h.rs = binary.BigEndian.Uint32(data[saltLen : saltLen+4])
	idlen := int(data[saltLen+4])
	if len(data) < headerLen+idlen+tagLen {
		return h, ErrShortPayload
	}
	h.keyID = data[headerLen : headerLen+idlen]
	h.ciphertext = data[headerLen+idlen:]

	if h.rs < tagLen+1 {
		return h, fmt.Errorf("ece: record size %d is too small", h.rs)
	}
	if uint64(len(h.ciphertext)) > uint64(h.rs) {
		return h, fmt.Errorf("ece: multi-record payloads are not supported")
	}
	return h, nil
}

// Decrypt opens an aes128gcm push message body addressed to these keys.
// The key id of the header carries the application server's public key.
func (k *Keys) Decrypt(data []byte) ([]byte, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	asPublic, err := ecdh.P256().NewPublicKey(h.keyID)
	if err != nil {
		return nil, fmt.Errorf("ece: application server key: %w", err)
	}
	shared, err := k.Private.ECDH(asPublic)
	if err != nil {
		return nil, fmt.Errorf("ece: ecdh: %w", err)
	}

	ikm, err := k.ikm(shared, asPublic)
	if err != nil {
		return nil, err
	}
	cek, nonce, err := cekAndNonce(ikm, h.salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("ece: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ece: gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, h.ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ece: open: %w", err)
	}
	return unpad(plaintext)
}

// ikm mixes the ECDH secret with the auth secret (RFC 8291 section 3.3).
func (k *Keys) ikm(shared []byte, asPublic *ecdh.PublicKey) ([]byte, error) {
	prk := hkdf.Extract(sha256.New, shared, k.Auth)
	info := bytes.Join([][]byte{
		[]byte("WebPush: info\x00"),
		k.P256dh(),
		asPublic.Bytes(),
	}, nil)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), ikm); err != nil {
		return nil, fmt.Errorf("ece: derive ikm: %w", err)
	}
	return ikm, nil
}

func cekAndNonce(ikm, salt []byte) (cek, nonce []byte, err error) {
	prk := hkdf.Extract(sha256.New, ikm, salt)

	cek = make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, nil, fmt.Errorf("ece: derive cek: %w", err)
	}
	nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, nil, fmt.Errorf("ece: derive nonce: %w", err)
	}
	return cek, nonce, nil
}

// unpad strips trailing zero padding and the record delimiter. 0x02 marks
// the last record; 0x01 is tolerated for senders that never set it.
func unpad(plaintext []byte) ([]byte, error) {
	i := len(plaintext) - 1
	for i >= 0 && plaintext[i] == 0 {
		i--
	}
	if i < 0 || (plaintext[i] != 0x02 && plaintext[i] != 0x01) {
		return nil, ErrInvalidPadding
	}
	return plaintext[:i], nil
}
