package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/dealer"
	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

func runKeygen(cmd *cobra.Command, args []string) error {
	if threshold <= 0 || parties <= 0 {
		return fmt.Errorf("threshold and parties must be positive")
	}
	if threshold > parties {
		return fmt.Errorf("threshold (%d) cannot exceed parties (%d)", threshold, parties)
	}

	secretScalar, err := ristretto.RandomScalar()
	if err != nil {
		return fmt.Errorf("drawing committee secret: %w", err)
	}
	secret := keyshare.FromScalar(secretScalar)

	rawShares, err := dealer.GenerateKeyshares(secret, uint32(threshold), uint32(parties))
	if err != nil {
		return fmt.Errorf("generating keyshares: %w", err)
	}

	shares := make(map[party.ID]keyshare.KeyShare, parties)
	scalars := make(map[party.ID]ristretto.Scalar, parties)
	for i := 1; i <= parties; i++ {
		id, err := party.NewID(uint32(i))
		if err != nil {
			return err
		}
		shares[id] = rawShares[i-1]
		scalars[id] = rawShares[i-1].Scalar()
	}

	key := activesecurity.NewKey(secretScalar, scalars)

	if err := writeCommitteeFile(outputFile, threshold, parties, shares, key); err != nil {
		return err
	}

	if verbose {
		fmt.Printf("generated %d-of-%d committee, wrote %s\n", threshold, parties, outputFile)
	}
	return nil
}
