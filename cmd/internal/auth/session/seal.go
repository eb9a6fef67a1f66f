package session

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed session files start with this magic so Load can tell them apart
// from plain JSON without a passphrase round-trip.
var sealMagic = []byte("RENOVA-SEALED-1\n")

// Argon2id parameters for the file key. Conservative interactive-use
// settings: 64 MiB, one pass, four lanes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltLen      = 16
)

type envelope struct {
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

func sealed(raw []byte) bool {
	return bytes.HasPrefix(raw, sealMagic)
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func sealEnvelope(plain, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	env := envelope{
		Salt:   salt,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, plain, sealMagic),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, sealMagic...), body...), nil
}

func openEnvelope(raw, passphrase []byte) ([]byte, error) {
	body := bytes.TrimPrefix(raw, sealMagic)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if len(env.Salt) != saltLen || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, errors.New("malformed envelope")
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, env.Nonce, env.Cipher, sealMagic)
}
