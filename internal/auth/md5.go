package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/saneproj/sane-net/pkg/auth"
)

// ChallengePrefix is the literal marker sanei_auth.h's challenge string
// carries before the random salt: "resource$MD5$randomstring".
const ChallengePrefix = "$MD5$"

// NewChallenge generates a fresh "resource$MD5$salt" challenge string for
// resource, where salt mixes the PID, the time, and randomness the same way
// sanei_authorize's reference challenge does (spec §3.2).
func NewChallenge(resource string, pid int) string {
	var noise uint64
	if err := binary.Read(rand.Reader, binary.BigEndian, &noise); err != nil {
		noise = uint64(time.Now().UnixNano())
	}
	salt := fmt.Sprintf("%d-%d-%x", pid, time.Now().UnixNano(), noise)
	return resource + ChallengePrefix + salt
}

// md5Provider verifies the two response forms sanei_auth.h's AUTHORIZE
// accepts against the credential's stored (plaintext) password (spec
// §4.3):
//   - Digest: response is "$MD5$" followed by hex(md5(salt ‖ password)).
//   - Plaintext: response is the password itself, compared directly.
type md5Provider struct{}

// NewMD5Provider returns the MD5 challenge/response Provider saned's auth
// module uses for AUTHORIZE.
func NewMD5Provider() auth.Provider { return md5Provider{} }

func (md5Provider) Name() string { return "md5" }

func (md5Provider) Verify(cred *auth.Credential, challenge, response string) bool {
	if cred == nil {
		return false
	}
	if strings.HasPrefix(response, ChallengePrefix) {
		digest := response[len(ChallengePrefix):]
		sum := md5.Sum([]byte(salt(challenge) + cred.Password))
		return subtleEqual(hex.EncodeToString(sum[:]), digest)
	}
	return subtleEqual(cred.Password, response)
}

// salt extracts the random salt portion of a "resource$MD5$salt" challenge.
func salt(challenge string) string {
	idx := strings.Index(challenge, ChallengePrefix)
	if idx < 0 {
		return challenge
	}
	return challenge[idx+len(ChallengePrefix):]
}

// subtleEqual is a constant-time string comparison to avoid timing side
// channels on the response digest.
func subtleEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
