package seed

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// maxIDExponent bounds the decimal exponent expanded into digits.
// Ids with a larger exponent are kept as written.
const maxIDExponent = 1024

// CanonicalID normalizes an entity id. Integers, including ones written in
// scientific notation like "3.70014E+11", become plain decimal strings of
// arbitrary size. Other numbers use the shortest decimal form and
// non-numeric ids are returned trimmed.
func CanonicalID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty entity id", ErrMalformedSeedRow)
	}

	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n.String(), nil
	}

	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, err := strconv.Atoi(s[i+1:])
		if err != nil || exp > maxIDExponent || exp < -maxIDExponent {
			return s, nil
		}
	}

	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil || f.IsInf() {
		return s, nil
	}
	if r, ok := new(big.Rat).SetString(s); ok && r.IsInt() {
		return r.Num().String(), nil
	}
	return f.Text('g', -1), nil
}
