// Package settlement converts the chairman's final decisions and the
// bidders' final claims into the exchange's payment ledger. The math is
// pure and deterministic; the Temporal activity around it only adds
// validation.
package settlement

import (
	"fmt"
	"sort"

	"github.com/ahrav/go-council/internal/domain"
)

// Settle computes one payment record per claim against the chairman's
// decisions.
//
// With C the chairman's decision and F the bidder's final claim:
//   - F > C: the bidder overclaimed. Penalty is rate*(F-C); the chairman
//     pays F+penalty and the bidder receives C-penalty. The spread between
//     the two is burned, which is what makes overclaiming unprofitable.
//   - F <= C: the two split the difference; both sides settle at (C+F)/2.
//
// PaymentUSD converts the received points against the value basis. The
// chairman's net is the basis minus everything paid out; it can go negative
// when penalties inflate what the chairman pays.
func Settle(input domain.SettleInput) domain.Settlement {
	claims := make([]domain.FinalClaim, len(input.Claims))
	copy(claims, input.Claims)
	sort.Slice(claims, func(i, j int) bool { return claims[i].Model < claims[j].Model })

	payments := make([]domain.PaymentRecord, 0, len(claims))
	var chairmanPaysTotalUSD float64

	for _, claim := range claims {
		c := input.Decisions[claim.Model]
		f := claim.ClaimMCC

		var penalty, pays, receives float64
		if c < f {
			penalty = input.PenaltyRate * (f - c)
			pays = f + penalty
			receives = c - penalty
		} else {
			pays = (c + f) / 2
			receives = pays
		}

		paymentUSD := receives / 100 * input.ValueBasisUSD
		chairmanPaymentUSD := pays / 100 * input.ValueBasisUSD
		chairmanPaysTotalUSD += chairmanPaymentUSD

		payments = append(payments, domain.PaymentRecord{
			Model:              claim.Model,
			DecisionMCC:        c,
			ClaimMCC:           f,
			PenaltyMCC:         penalty,
			ChairmanPaysMCC:    pays,
			BidderReceivesMCC:  receives,
			PaymentUSD:         paymentUSD,
			ChairmanPaymentUSD: chairmanPaymentUSD,
		})
	}

	return domain.Settlement{
		ValueBasisUSD:  input.ValueBasisUSD,
		PenaltyRate:    input.PenaltyRate,
		Payments:       payments,
		ChairmanNetUSD: input.ValueBasisUSD - chairmanPaysTotalUSD,
	}
}

// verifyCoverage confirms every surviving bidder has exactly one claim and
// a matching decision before settlement math runs.
func verifyCoverage(input domain.SettleInput) error {
	seen := make(map[string]struct{}, len(input.Claims))
	for _, claim := range input.Claims {
		if !input.Survivors.Contains(claim.Model) {
			return fmt.Errorf("%w: claim from %q", domain.ErrUnknownBidder, claim.Model)
		}
		if _, dup := seen[claim.Model]; dup {
			return fmt.Errorf("%w: duplicate claim from %q", domain.ErrUnknownBidder, claim.Model)
		}
		seen[claim.Model] = struct{}{}
	}
	for _, model := range input.Survivors {
		if _, ok := seen[model]; !ok {
			return fmt.Errorf("%w: no claim recorded for %q", domain.ErrUnknownBidder, model)
		}
		if _, ok := input.Decisions[model]; !ok {
			return fmt.Errorf("%w: no decision recorded for %q", domain.ErrUnknownBidder, model)
		}
	}
	return nil
}
