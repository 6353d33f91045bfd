package typeddata

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// encodeValue returns the 32 byte slot of value declared as typ.
func (t Types) encodeValue(typ string, value any) ([]byte, error) {
	if elem, size, ok := splitArray(typ); ok {
		return t.encodeArray(elem, size, value)
	}
	if _, ok := t[typ]; ok {
		data, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected object for %s, got %T", ErrInvalidTypedData, typ, value)
		}
		hash, err := t.HashStruct(typ, data)
		if err != nil {
			return nil, err
		}
		return hash.Bytes(), nil
	}

	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidTypedData, value)
		}
		return crypto.Keccak256([]byte(s)), nil

	case typ == "bytes":
		b, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		return crypto.Keccak256(b), nil

	case typ == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", ErrInvalidTypedData, value)
		}
		slot := make([]byte, 32)
		if b {
			slot[31] = 1
		}
		return slot, nil

	case typ == "address":
		addr, err := toAddress(value)
		if err != nil {
			return nil, err
		}
		return common.LeftPadBytes(addr.Bytes(), 32), nil

	case strings.HasPrefix(typ, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(typ, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidTypedData, typ)
		}
		b, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		if len(b) > size {
			return nil, fmt.Errorf("%w: %d bytes do not fit %s", ErrInvalidTypedData, len(b), typ)
		}
		return common.RightPadBytes(b, 32), nil

	case strings.HasPrefix(typ, "int"), strings.HasPrefix(typ, "uint"):
		return encodeInteger(typ, value)
	}

	return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidTypedData, typ)
}

func (t Types) encodeArray(elem string, size int, value any) ([]byte, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected array of %s, got %T", ErrInvalidTypedData, elem, value)
	}
	if size >= 0 && rv.Len() != size {
		return nil, fmt.Errorf("%w: expected %d elements, got %d", ErrInvalidTypedData, size, rv.Len())
	}

	encoded := make([]byte, 0, 32*rv.Len())
	for i := 0; i < rv.Len(); i++ {
		slot, err := t.encodeValue(elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		encoded = append(encoded, slot...)
	}
	return crypto.Keccak256(encoded), nil
}

// splitArray splits "T[k]" into ("T", k) and "T[]" into ("T", -1).
func splitArray(typ string) (string, int, bool) {
	if !strings.HasSuffix(typ, "]") {
		return "", 0, false
	}
	open := strings.LastIndexByte(typ, '[')
	if open < 0 {
		return "", 0, false
	}
	elem, inner := typ[:open], typ[open+1:len(typ)-1]
	if inner == "" {
		return elem, -1, true
	}
	size, err := strconv.Atoi(inner)
	if err != nil || size < 0 {
		return "", 0, false
	}
	return elem, size, true
}

func encodeInteger(typ string, value any) ([]byte, error) {
	signed := !strings.HasPrefix(typ, "uint")
	bitsStr := strings.TrimPrefix(strings.TrimPrefix(typ, "u"), "int")

	bits := 256
	if bitsStr != "" {
		n, err := strconv.Atoi(bitsStr)
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidTypedData, typ)
		}
		bits = n
	}

	v, err := toBigInt(value)
	if err != nil {
		return nil, err
	}

	if signed {
		bound := v
		if v.Sign() < 0 {
			bound = new(big.Int).Sub(new(big.Int).Neg(v), big.NewInt(1))
		}
		if bound.BitLen() > bits-1 {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrInvalidTypedData, v, typ)
		}
	} else if v.Sign() < 0 || v.BitLen() > bits {
		return nil, fmt.Errorf("%w: %s overflows %s", ErrInvalidTypedData, v, typ)
	}

	return math.U256Bytes(new(big.Int).Set(v)), nil
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidTypedData)
		}
		return v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		f := new(big.Float).SetFloat64(v)
		if !f.IsInt() {
			return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidTypedData, v)
		}
		i, _ := f.Int(nil)
		return i, nil
	case json.Number:
		return parseBigInt(v.String())
	case string:
		return parseBigInt(v)
	}
	return nil, fmt.Errorf("%w: expected integer, got %T", ErrInvalidTypedData, value)
}

func parseBigInt(s string) (*big.Int, error) {
	neg := strings.HasPrefix(s, "-")
	i, ok := math.ParseBig256(strings.TrimPrefix(s, "-"))
	if !ok {
		return nil, fmt.Errorf("%w: invalid integer %q", ErrInvalidTypedData, s)
	}
	if neg {
		i.Neg(i)
	}
	return i, nil
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	case hexutil.Bytes:
		return v, nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex bytes %q: %v", ErrInvalidTypedData, v, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: expected bytes, got %T", ErrInvalidTypedData, value)
}

func toAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v != nil {
			return *v, nil
		}
	case string:
		if common.IsHexAddress(v) {
			return common.HexToAddress(v), nil
		}
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidTypedData, v)
	}
	return common.Address{}, fmt.Errorf("%w: expected address, got %T", ErrInvalidTypedData, value)
}
