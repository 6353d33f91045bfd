package ethauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pilacorp/go-ethauth/signer"
	"github.com/pilacorp/go-ethauth/typeddata"
)

const (
	// ETHAuthVersion is the protocol version carried in Claims.Version.
	ETHAuthVersion = "1"
	// ETHAuthPrefix is the first segment of every encoded proof.
	ETHAuthPrefix = "eth"
	// ClaimsTypeName is the primary type of the signed typed data.
	ClaimsTypeName = "Claims"
)

// ETHAuthEIP712Domain is the typed-data domain every proof is signed under.
var ETHAuthEIP712Domain = typeddata.Domain{
	Name:    "ETHAuth",
	Version: ETHAuthVersion,
}

// Proof binds Claims to an account through Signature.
type Proof struct {
	// Prefix is always ETHAuthPrefix.
	Prefix string `json:"prefix" yaml:"prefix"`
	// Address is the lowercase hex account address.
	Address string `json:"address" yaml:"address"`
	// Claims is the message part of the typed data.
	Claims Claims `json:"claims" yaml:"claims"`
	// Signature is the 0x hex signature of the message digest.
	Signature string `json:"signature" yaml:"signature"`
	// Extra is optional 0x hex data for validators that need more context,
	// such as the deployment data of a counterfactual wallet.
	Extra string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProof returns an unsigned proof with the current protocol version.
func NewProof() *Proof {
	return &Proof{
		Prefix: ETHAuthPrefix,
		Claims: Claims{Version: ETHAuthVersion},
	}
}

// NewProofFromParts assembles a proof from decoded parts.
func NewProofFromParts(address string, claims Claims, signature, extra string) *Proof {
	return &Proof{
		Prefix:    ETHAuthPrefix,
		Address:   strings.ToLower(address),
		Claims:    claims,
		Signature: signature,
		Extra:     extra,
	}
}

// SetIssuedAtNow sets the iat claim to the current time.
func (p *Proof) SetIssuedAtNow() {
	p.Claims.IssuedAt = nowFunc().Unix()
}

// SetExpiryIn sets the exp claim to d from now.
func (p *Proof) SetExpiryIn(d time.Duration) {
	p.Claims.ExpiresAt = nowFunc().Add(d).Unix()
}

func (p *Proof) ValidateClaims() error {
	return p.Claims.Validate()
}

// MessageTypedData returns the typed data of the claims. Absent fields are
// left out of both the Claims type and the message.
func (p *Proof) MessageTypedData() *typeddata.TypedData {
	fields := make([]typeddata.Field, 0, len(claimFields))
	message := make(map[string]any, len(claimFields))

	for _, f := range claimFields {
		if !f.present(p.Claims) {
			continue
		}
		fields = append(fields, typeddata.Field{Name: f.name, Type: f.typ})
		message[f.name] = f.value(p.Claims)
	}

	return &typeddata.TypedData{
		Domain:      ETHAuthEIP712Domain,
		Types:       typeddata.Types{ClaimsTypeName: fields},
		PrimaryType: ClaimsTypeName,
		Message:     message,
	}
}

// MessageDigest returns the 32 byte digest to be signed. It fails when the
// claims are not valid.
func (p *Proof) MessageDigest() ([]byte, error) {
	if err := p.ValidateClaims(); err != nil {
		return nil, err
	}

	hash, err := p.MessageTypedData().Hash()
	if err != nil {
		return nil, fmt.Errorf("failed to hash claims: %w", err)
	}
	return hash.Bytes(), nil
}

// SignWith signs the message digest with s and stores the signature. Address
// is taken from s when it has not been set.
func (p *Proof) SignWith(s signer.SignerProvider) error {
	if s == nil {
		return fmt.Errorf("signer provider is required")
	}

	digest, err := p.MessageDigest()
	if err != nil {
		return err
	}

	signature, err := signer.PersonalSign(s, digest)
	if err != nil {
		return fmt.Errorf("failed to sign proof: %w", err)
	}

	if p.Address == "" {
		p.Address = strings.ToLower(s.GetAddress())
	}
	p.Signature = signature
	return nil
}
