package main

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

// committeeFile is the CLI's on-disk committee format: every keyshare in
// the clear alongside the active-security key derived from them. Real
// keyservers never see each other's shares; this format only exists
// because keygen is a test/utility concern, never a production path.
type committeeFile struct {
	RequiredKeyholders int                `cbor:"required_keyholders"`
	NumKeyholders      int                `cbor:"num_keyholders"`
	Shares             map[party.ID]string `cbor:"shares"`
	PublicKey          [32]byte           `cbor:"public_key"`
	SquaredPublicKey   [32]byte           `cbor:"squared_public_key"`
	Commitments        map[party.ID][32]byte `cbor:"commitments"`
}

func writeCommitteeFile(path string, required, total int, shares map[party.ID]keyshare.KeyShare, key activesecurity.Key) error {
	out := committeeFile{
		RequiredKeyholders: required,
		NumKeyholders:      total,
		Shares:             make(map[party.ID]string, len(shares)),
		PublicKey:          key.PublicKey().Encode(),
		SquaredPublicKey:   key.SquaredPublicKey().Encode(),
		Commitments:        make(map[party.ID][32]byte, len(shares)),
	}
	for id, share := range shares {
		out.Shares[id] = share.String()
	}
	for id, commitment := range key.Commitments() {
		out.Commitments[id] = commitment.Encode()
	}

	data, err := cbor.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding committee file: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func readCommitteeFile(path string) (committeeFile, map[party.ID]keyshare.KeyShare, activesecurity.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("reading committee file: %w", err)
	}
	var cf committeeFile
	if err := cbor.Unmarshal(data, &cf); err != nil {
		return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("decoding committee file: %w", err)
	}

	shares := make(map[party.ID]keyshare.KeyShare, len(cf.Shares))
	for id, hexShare := range cf.Shares {
		share, err := keyshare.Parse(hexShare)
		if err != nil {
			return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("decoding share for %s: %w", id, err)
		}
		shares[id] = share
	}

	publicKey, err := ristretto.DecodePoint(cf.PublicKey[:])
	if err != nil {
		return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("decoding public key: %w", err)
	}
	squaredPublicKey, err := ristretto.DecodePoint(cf.SquaredPublicKey[:])
	if err != nil {
		return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("decoding squared public key: %w", err)
	}
	commitments := make(map[party.ID]ristretto.Point, len(cf.Commitments))
	for id, b := range cf.Commitments {
		p, err := ristretto.DecodePoint(b[:])
		if err != nil {
			return committeeFile{}, nil, activesecurity.Key{}, fmt.Errorf("decoding commitment for %s: %w", id, err)
		}
		commitments[id] = p
	}
	key := activesecurity.FromParts(publicKey, squaredPublicKey, commitments)

	return cf, shares, key, nil
}
