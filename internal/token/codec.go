// Package token encodes and decodes the opaque client-facing token. The
// wire format is the sealed ciphertext of "Id:<n>,Type:<kind>"; nothing
// else is externally visible.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/keygate-io/keygate/internal/crypto"
	"github.com/keygate-io/keygate/pkg/models"
)

// ErrMalformedToken is returned when a decrypted payload is missing a
// required field or carries an invalid record id.
var ErrMalformedToken = errors.New("malformed token payload")

const (
	idField   = "Id"
	kindField = "Type"
)

// Issued is the result of encoding a record reference: the token handed to
// the client and the digest the caller persists as the access record.
type Issued struct {
	Token  string
	Digest string
}

// Codec seals record references into opaque tokens.
type Codec struct {
	sealer *crypto.Sealer
}

func NewCodec(sealer *crypto.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Issue builds the payload for (recordID, kind), seals it, and returns the
// token together with its revocation digest. The digest is computed over
// the sealed text, so it is recomputable from the presented token alone.
func (c *Codec) Issue(recordID int64, kind models.KeyKind) (Issued, error) {
	if recordID < 0 {
		return Issued{}, fmt.Errorf("issue token: negative record id %d", recordID)
	}
	payload := fmt.Sprintf("%s:%d,%s:%s", idField, recordID, kindField, kind)

	sealed, err := c.sealer.Encrypt(payload)
	if err != nil {
		return Issued{}, fmt.Errorf("issue token: %w", err)
	}
	return Issued{Token: sealed, Digest: c.sealer.Digest(sealed)}, nil
}

// Decode opens a token and parses the record reference out of it. Field
// order is not significant, but both fields must be present and the id must
// be a non-negative integer. Decryption failures surface as
// crypto.ErrDecryption; payload failures as ErrMalformedToken.
func (c *Codec) Decode(tok string) (int64, models.KeyKind, error) {
	payload, err := c.sealer.Decrypt(tok)
	if err != nil {
		return 0, "", err
	}

	var (
		id      int64 = -1
		kind    models.KeyKind
		sawID   bool
		sawKind bool
	)
	for _, part := range strings.Split(payload, ",") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch name {
		case idField:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return 0, "", fmt.Errorf("%w: bad id %q", ErrMalformedToken, value)
			}
			id = n
			sawID = true
		case kindField:
			kind = models.KeyKind(value)
			sawKind = true
		}
	}

	if !sawID || !sawKind {
		return 0, "", fmt.Errorf("%w: missing required field", ErrMalformedToken)
	}
	return id, kind, nil
}

// Digest recomputes the revocation digest for a presented token.
func (c *Codec) Digest(tok string) string {
	return c.sealer.Digest(tok)
}
