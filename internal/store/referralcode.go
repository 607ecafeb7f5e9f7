package store

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const referralCodePrefix = "LUM-"

// ReferralCodeFromSeed derives a referral code from a seed string: FNV-1a 32
// over the seed, rendered base-36 upper case, padded to six characters. The
// same seed always yields the same code, so a user's primary code is stable
// across processes.
func ReferralCodeFromSeed(seed string) string {
	h := fnv.New32a()
	h.Write([]byte(seed))
	token := strings.ToUpper(strconv.FormatUint(uint64(h.Sum32()), 36))
	for len(token) < 6 {
		token = "0" + token
	}
	return referralCodePrefix + token[:6]
}

// ReferralCodeCandidates yields the ordered code candidates for a user: the
// primary derivation, six deterministic variants, then random fallbacks. Store
// implementations walk the list until one is free.
func ReferralCodeCandidates(userID string) []string {
	candidates := make([]string, 0, 39)
	candidates = append(candidates, ReferralCodeFromSeed("ref:"+userID))
	for attempt := 1; attempt <= 6; attempt++ {
		candidates = append(candidates, ReferralCodeFromSeed(fmt.Sprintf("ref:%s:%d", userID, attempt)))
	}
	for attempt := 0; attempt < 32; attempt++ {
		candidates = append(candidates, ReferralCodeFromSeed(fmt.Sprintf("rnd:%s:%d:%s", userID, attempt, uuid.NewString())))
	}
	return candidates
}
