package report

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const attestIssuer = "lexsim"

// AttestationClaims bind a run id to the digest of its output.
type AttestationClaims struct {
	Digest    string `json:"digest"`
	Snapshots int    `json:"snapshots"`
	jwt.RegisteredClaims
}

// deriveKey derives a per-run HMAC key from the shared secret with HKDF-SHA256.
func deriveKey(secret []byte, runID string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("attestation secret must not be empty")
	}
	if runID == "" {
		return nil, errors.New("run id must not be empty")
	}
	r := hkdf.New(sha256.New, secret, []byte("lexsim-attestation"), []byte(runID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	return key, nil
}

// Attest signs the document digest as an HS256 JWT.
func Attest(doc *Document, secret []byte, runID string, now time.Time) (string, error) {
	key, err := deriveKey(secret, runID)
	if err != nil {
		return "", err
	}
	digest, err := doc.Digest()
	if err != nil {
		return "", err
	}

	claims := AttestationClaims{
		Digest:    digest,
		Snapshots: len(doc.Snapshots),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   attestIssuer,
			Subject:  runID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign attestation: %w", err)
	}
	return signed, nil
}

// VerifyAttestation checks the token signature and that it attests doc.
func VerifyAttestation(tokenString string, doc *Document, secret []byte, runID string) (*AttestationClaims, error) {
	key, err := deriveKey(secret, runID)
	if err != nil {
		return nil, err
	}

	claims := &AttestationClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	},
		jwt.WithIssuer(attestIssuer),
		jwt.WithSubject(runID),
	)
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}

	digest, err := doc.Digest()
	if err != nil {
		return nil, err
	}
	if claims.Digest != digest {
		return nil, fmt.Errorf("attestation digest mismatch: token %s, document %s", claims.Digest, digest)
	}
	return claims, nil
}
