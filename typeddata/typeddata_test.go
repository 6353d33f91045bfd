package typeddata

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mailTypedData() *TypedData {
	contract := common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
	return &TypedData{
		Domain: Domain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainID:           big.NewInt(1),
			VerifyingContract: &contract,
		},
		Types: Types{
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Message: map[string]any{
			"from": map[string]any{
				"name":   "Cow",
				"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			},
			"to": map[string]any{
				"name":   "Bob",
				"wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
			},
			"contents": "Hello, Bob!",
		},
	}
}

func TestMailExample(t *testing.T) {
	td := mailTypedData()

	encoded, err := td.Types.EncodeType("Mail")
	require.NoError(t, err)
	assert.Equal(t, "Mail(Person from,Person to,string contents)Person(string name,address wallet)", encoded)

	typeHash, err := td.Types.TypeHash("Mail")
	require.NoError(t, err)
	assert.Equal(t, "0xa0cedeb2dc280ba39b857546d74f5549c3a1d7bdc2dd96bf881f76108e23dac2", typeHash.Hex())

	separator, err := td.DomainSeparator()
	require.NoError(t, err)
	assert.Equal(t, "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f", separator.Hex())

	message, err := td.HashStruct()
	require.NoError(t, err)
	assert.Equal(t, "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e", message.Hex())

	hash, err := td.Hash()
	require.NoError(t, err)
	assert.Equal(t, "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2", hash.Hex())
}

func ethAuthTypedData(app string, iat, exp int64) *TypedData {
	return &TypedData{
		Domain: Domain{Name: "ETHAuth", Version: "1"},
		Types: Types{
			"Claims": {
				{Name: "app", Type: "string"},
				{Name: "iat", Type: "int64"},
				{Name: "exp", Type: "int64"},
				{Name: "v", Type: "string"},
			},
		},
		PrimaryType: "Claims",
		Message: map[string]any{
			"app": app,
			"iat": iat,
			"exp": exp,
			"v":   "1",
		},
	}
}

func TestHashETHAuthClaims(t *testing.T) {
	td := ethAuthTypedData("ETHAuthTest", 1720017432, 1745937432)

	hash, err := td.Hash()
	require.NoError(t, err)
	assert.Equal(t, "0x2926d593d635b41fe4adff9c7ca6b9b98879d721c45f7c5bc0a3ca34455b6015", hash.Hex())

	again, err := td.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	other, err := ethAuthTypedData("ETHAuthTest2", 1720017432, 1745937432).Hash()
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestDomainFields(t *testing.T) {
	d := Domain{Name: "ETHAuth", Version: "1"}
	assert.Equal(t, []Field{{Name: "name", Type: "string"}, {Name: "version", Type: "string"}}, d.Fields())

	encoded, err := Types{DomainTypeName: d.Fields()}.EncodeType(DomainTypeName)
	require.NoError(t, err)
	assert.Equal(t, "EIP712Domain(string name,string version)", encoded)

	want := crypto.Keccak256Hash(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version)")),
		crypto.Keccak256([]byte("ETHAuth")),
		crypto.Keccak256([]byte("1")),
	)
	got, err := d.Separator()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeTypeDependencies(t *testing.T) {
	types := Types{
		"Order": {
			{Name: "maker", Type: "Party"},
			{Name: "items", Type: "Item[]"},
			{Name: "taker", Type: "Party"},
		},
		"Party": {{Name: "wallet", Type: "address"}},
		"Item":  {{Name: "id", Type: "uint256"}, {Name: "asset", Type: "Asset"}},
		"Asset": {{Name: "symbol", Type: "string"}},
	}

	encoded, err := types.EncodeType("Order")
	require.NoError(t, err)
	assert.Equal(t,
		"Order(Party maker,Item[] items,Party taker)Asset(string symbol)Item(uint256 id,Asset asset)Party(address wallet)",
		encoded)
}

func TestEncodeValue(t *testing.T) {
	types := Types{}

	tests := []struct {
		name  string
		typ   string
		value any
		want  string
	}{
		{
			name:  "uint64",
			typ:   "uint64",
			value: uint64(42),
			want:  "0x000000000000000000000000000000000000000000000000000000000000002a",
		},
		{
			name:  "negative int64",
			typ:   "int64",
			value: int64(-1),
			want:  "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		},
		{
			name:  "bool true",
			typ:   "bool",
			value: true,
			want:  "0x0000000000000000000000000000000000000000000000000000000000000001",
		},
		{
			name:  "address",
			typ:   "address",
			value: "0xe0c9828dee3411a28ccb4bb82a18d0aad24489e0",
			want:  "0x000000000000000000000000e0c9828dee3411a28ccb4bb82a18d0aad24489e0",
		},
		{
			name:  "bytes4 right padded",
			typ:   "bytes4",
			value: []byte{0x16, 0x26, 0xba, 0x7e},
			want:  "0x1626ba7e00000000000000000000000000000000000000000000000000000000",
		},
		{
			name:  "decimal string uint256",
			typ:   "uint256",
			value: "256",
			want:  "0x0000000000000000000000000000000000000000000000000000000000000100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := types.encodeValue(tt.typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hexutil.Encode(slot))
		})
	}
}

func TestEncodeDynamicValues(t *testing.T) {
	types := Types{}

	slot, err := types.encodeValue("string", "ETHAuth")
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("ETHAuth")), slot)

	slot, err = types.encodeValue("bytes", "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte{0xde, 0xad, 0xbe, 0xef}), slot)

	slot, err = types.encodeValue("uint8[]", []any{1, 2})
	require.NoError(t, err)
	one := common.LeftPadBytes([]byte{1}, 32)
	two := common.LeftPadBytes([]byte{2}, 32)
	assert.Equal(t, crypto.Keccak256(append(one, two...)), slot)
}

func TestEncodeErrors(t *testing.T) {
	td := ethAuthTypedData("ETHAuthTest", 1, 2)

	tests := []struct {
		name    string
		mutate  func(td *TypedData)
		wantErr string
	}{
		{
			name:    "unknown primary type",
			mutate:  func(td *TypedData) { td.PrimaryType = "Token" },
			wantErr: `unknown type "Token"`,
		},
		{
			name:    "missing value",
			mutate:  func(td *TypedData) { delete(td.Message, "exp") },
			wantErr: "missing value for Claims.exp",
		},
		{
			name:    "int64 overflow",
			mutate:  func(td *TypedData) { td.Message["iat"] = uint64(1) << 63 },
			wantErr: "overflows int64",
		},
		{
			name:    "wrong string type",
			mutate:  func(td *TypedData) { td.Message["app"] = 7 },
			wantErr: "expected string",
		},
		{
			name: "unsupported type",
			mutate: func(td *TypedData) {
				td.Types["Claims"] = append(td.Types["Claims"], Field{Name: "f", Type: "fixed128x18"})
				td.Message["f"] = 1
			},
			wantErr: "unsupported type fixed128x18",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clone := ethAuthTypedData("ETHAuthTest", 1, 2)
			clone.Types = Types{"Claims": append([]Field(nil), td.Types["Claims"]...)}
			tt.mutate(clone)

			_, err := clone.Hash()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTypedData)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestSplitArray(t *testing.T) {
	elem, size, ok := splitArray("uint256[]")
	assert.True(t, ok)
	assert.Equal(t, "uint256", elem)
	assert.Equal(t, -1, size)

	elem, size, ok = splitArray("Person[2][]")
	assert.True(t, ok)
	assert.Equal(t, "Person[2]", elem)
	assert.Equal(t, -1, size)

	elem, size, ok = splitArray("bytes32[3]")
	assert.True(t, ok)
	assert.Equal(t, "bytes32", elem)
	assert.Equal(t, 3, size)

	_, _, ok = splitArray("string")
	assert.False(t, ok)
}
