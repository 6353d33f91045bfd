// Package typeddata implements EIP-712 structured data hashing.
//
// A TypedData value carries a domain, a set of struct type definitions,
// the name of the primary type and the message to hash. Hash returns the
// digest that wallets sign:
//
//	keccak256(0x19 0x01 ‖ domainSeparator ‖ hashStruct(message))
//
// Only the populated domain fields take part in the domain separator, so a
// domain with just a name and a version hashes as
// EIP712Domain(string name,string version).
package typeddata

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DomainTypeName is the reserved struct name of the domain separator.
const DomainTypeName = "EIP712Domain"

// ErrInvalidTypedData is wrapped by every encoding error of this package.
var ErrInvalidTypedData = errors.New("typeddata: invalid typed data")

// Field is one member of a struct type definition.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types maps struct names to their ordered member list.
type Types map[string][]Field

// Domain is the EIP-712 domain. Nil or empty members are left out of the
// domain type.
type Domain struct {
	Name              string          `json:"name,omitempty"`
	Version           string          `json:"version,omitempty"`
	ChainID           *big.Int        `json:"chainId,omitempty"`
	VerifyingContract *common.Address `json:"verifyingContract,omitempty"`
	Salt              *common.Hash    `json:"salt,omitempty"`
}

// Fields returns the domain type members in canonical order.
func (d Domain) Fields() []Field {
	fields := make([]Field, 0, 5)
	if d.Name != "" {
		fields = append(fields, Field{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, Field{Name: "version", Type: "string"})
	}
	if d.ChainID != nil {
		fields = append(fields, Field{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != nil {
		fields = append(fields, Field{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != nil {
		fields = append(fields, Field{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// Message returns the domain as a message for hashStruct.
func (d Domain) Message() map[string]any {
	msg := make(map[string]any, 5)
	if d.Name != "" {
		msg["name"] = d.Name
	}
	if d.Version != "" {
		msg["version"] = d.Version
	}
	if d.ChainID != nil {
		msg["chainId"] = d.ChainID
	}
	if d.VerifyingContract != nil {
		msg["verifyingContract"] = *d.VerifyingContract
	}
	if d.Salt != nil {
		msg["salt"] = *d.Salt
	}
	return msg
}

// Separator returns hashStruct(EIP712Domain, domain).
func (d Domain) Separator() (common.Hash, error) {
	types := Types{DomainTypeName: d.Fields()}
	return types.HashStruct(DomainTypeName, d.Message())
}

// TypedData is a complete EIP-712 signing request.
type TypedData struct {
	Domain      Domain         `json:"domain"`
	Types       Types          `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Message     map[string]any `json:"message"`
}

// DomainSeparator returns the hash of the domain.
func (td *TypedData) DomainSeparator() (common.Hash, error) {
	return td.Domain.Separator()
}

// HashStruct returns hashStruct of the primary type over the message.
func (td *TypedData) HashStruct() (common.Hash, error) {
	return td.Types.HashStruct(td.PrimaryType, td.Message)
}

// Hash returns the final 32 byte digest.
func (td *TypedData) Hash() (common.Hash, error) {
	separator, err := td.DomainSeparator()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	message, err := td.HashStruct()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, separator.Bytes(), message.Bytes()), nil
}

// EncodeType returns the type string of name followed by every struct it
// references, the latter sorted by name.
func (t Types) EncodeType(name string) (string, error) {
	if _, ok := t[name]; !ok {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidTypedData, name)
	}

	found := make(map[string]bool)
	t.dependencies(name, found)
	delete(found, name)

	deps := make([]string, 0, len(found))
	for dep := range found {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	var b strings.Builder
	for _, typ := range append([]string{name}, deps...) {
		b.WriteString(typ)
		b.WriteByte('(')
		for i, field := range t[typ] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(field.Type)
			b.WriteByte(' ')
			b.WriteString(field.Name)
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

func (t Types) dependencies(name string, found map[string]bool) {
	name = baseType(name)
	if found[name] {
		return
	}
	fields, ok := t[name]
	if !ok {
		return
	}
	found[name] = true
	for _, field := range fields {
		t.dependencies(field.Type, found)
	}
}

// TypeHash returns keccak256 of the encoded type.
func (t Types) TypeHash(name string) (common.Hash, error) {
	encoded, err := t.EncodeType(name)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte(encoded)), nil
}

// EncodeData returns the concatenated 32 byte slots of data, one per
// member of name in declaration order.
func (t Types) EncodeData(name string, data map[string]any) ([]byte, error) {
	fields, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTypedData, name)
	}

	out := make([]byte, 0, 32*len(fields))
	for _, field := range fields {
		value, ok := data[field.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing value for %s.%s", ErrInvalidTypedData, name, field.Name)
		}
		slot, err := t.encodeValue(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, field.Name, err)
		}
		out = append(out, slot...)
	}
	return out, nil
}

// HashStruct returns keccak256(typeHash ‖ encodeData).
func (t Types) HashStruct(name string, data map[string]any) (common.Hash, error) {
	typeHash, err := t.TypeHash(name)
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := t.EncodeData(name, data)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(typeHash.Bytes(), encoded), nil
}

// baseType strips every array suffix from typ.
func baseType(typ string) string {
	if i := strings.IndexByte(typ, '['); i >= 0 {
		return typ[:i]
	}
	return typ
}
