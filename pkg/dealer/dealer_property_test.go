package dealer_test

import (
	"testing/quick"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dnascreen/doprf/pkg/dealer"
	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

var _ = Describe("GenerateKeyshares", func() {
	It("lets any size-k quorum reconstruct the secret, for arbitrary valid (k, n)", func() {
		property := func(nRaw, kRaw uint8) bool {
			n := int(nRaw%18) + 2      // n in [2, 19]
			k := int(kRaw%uint8(n)) + 1 // k in [1, n]

			secretScalar, err := ristretto.RandomScalar()
			if err != nil {
				return false
			}
			secret := keyshare.FromScalar(secretScalar)

			shares, err := dealer.GenerateKeyshares(secret, uint32(k), uint32(n))
			if err != nil {
				return false
			}

			quorumIDs := make([]party.ID, 0, k)
			for i := 1; i <= k; i++ {
				id, _ := party.NewID(uint32(i))
				quorumIDs = append(quorumIDs, id)
			}
			quorum := party.NewSet(quorumIDs...)
			coeffs := polynomial.LagrangeCoefficients(quorum)

			reconstructed := ristretto.ZeroScalar()
			for _, id := range quorum.IDs() {
				share := shares[uint8(id)-1]
				reconstructed = reconstructed.Add(share.Scalar().Mul(coeffs[id]))
			}
			return reconstructed.Equal(secretScalar)
		}

		Expect(quick.Check(property, &quick.Config{MaxCount: 50})).To(Succeed())
	})
})
