/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package multikey checks multibase/multicodec public key encodings
// (https://www.w3.org/TR/controller-document/#multikey) for the ECDSA key
// types the conformance suite covers.
package multikey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multibase"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

const (
	didKeyPrefix = "did:key:"

	maxMulticodecBytes = 9
)

// PublicKey is a decoded multikey.
type PublicKey struct {
	KeyType    suite.KeyType
	Code       uint64
	Compressed []byte
}

// Decode decodes a multikey string and checks its encoding: base58btc
// multibase ("z" prefix), a multicodec varint naming a supported ECDSA curve,
// total decoded length of 35 bytes (P-256) or 51 bytes (P-384), and an SEC1
// compressed point prefix on the key bytes.
func Decode(multikey string) (*PublicKey, error) {
	if multikey == "" {
		return nil, errors.New("empty multikey")
	}

	encoding, decoded, err := multibase.Decode(multikey)
	if err != nil {
		return nil, fmt.Errorf("decode multikey: %w", err)
	}

	if encoding != multibase.Base58BTC {
		return nil, fmt.Errorf("multikey must use base58btc (z) multibase encoding, got prefix %q",
			string(multikey[0]))
	}

	code, br := binary.Uvarint(decoded)
	if br <= 0 || br > maxMulticodecBytes {
		return nil, errors.New("invalid multicodec varint header")
	}

	var keyType suite.KeyType

	switch code {
	case suite.P256.MulticodecCode():
		keyType = suite.P256
	case suite.P384.MulticodecCode():
		keyType = suite.P384
	default:
		return nil, fmt.Errorf("unsupported multicodec 0x%x", code)
	}

	if len(decoded) != keyType.MultikeyLength() {
		return nil, fmt.Errorf("%s multikey decodes to %d bytes, expected %d",
			keyType, len(decoded), keyType.MultikeyLength())
	}

	compressed := decoded[br:]

	if compressed[0] != 0x02 && compressed[0] != 0x03 {
		return nil, fmt.Errorf("compressed EC point must start with 0x02 or 0x03, got 0x%02x",
			compressed[0])
	}

	return &PublicKey{
		KeyType:    keyType,
		Code:       code,
		Compressed: compressed,
	}, nil
}

// Validate decodes the multikey and checks that it encodes a key of the
// expected type.
func Validate(multikey string, expected suite.KeyType) error {
	pub, err := Decode(multikey)
	if err != nil {
		return err
	}

	if pub.KeyType != expected {
		return fmt.Errorf("multikey encodes a %s key, expected %s", pub.KeyType, expected)
	}

	return nil
}

// Fingerprint generates a multibase base58btc fingerprint for the given
// multicodec code and raw key bytes.
func Fingerprint(code uint64, pubKeyValue []byte) string {
	multicodecValue := multicodec(code)
	mcLength := len(multicodecValue)
	buf := make([]byte, mcLength+len(pubKeyValue))
	copy(buf, multicodecValue)
	copy(buf[mcLength:], pubKeyValue)

	return fmt.Sprintf("z%s", base58.Encode(buf))
}

// DIDKey builds a did:key DID and its verification method ID for a compressed
// public key of the given type.
func DIDKey(keyType suite.KeyType, compressed []byte) (string, string) {
	methodID := Fingerprint(keyType.MulticodecCode(), compressed)
	didKey := didKeyPrefix + methodID
	keyID := fmt.Sprintf("%s#%s", didKey, methodID)

	return didKey, keyID
}

// FromVerificationMethod extracts the multikey embedded in a proof's
// verificationMethod reference. Both did:key references and controller
// documents that use the multikey itself as the fragment are supported.
func FromVerificationMethod(vm string) (string, error) {
	controller := vm

	if i := strings.LastIndex(vm, "#"); i >= 0 {
		if fragment := vm[i+1:]; strings.HasPrefix(fragment, "z") {
			return fragment, nil
		}

		controller = vm[:i]
	}

	if strings.HasPrefix(controller, didKeyPrefix) {
		return strings.TrimPrefix(controller, didKeyPrefix), nil
	}

	return "", fmt.Errorf("verification method %q does not embed a multikey", vm)
}

func multicodec(code uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	bw := binary.PutUvarint(buf, code)

	return buf[:bw]
}
