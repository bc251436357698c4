package bench

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Mode selects the report format.
type Mode int

const (
	// Text prints "<label>: <cost> units (<value> BSV @ <rate> sat/unit)".
	Text Mode = iota
	// JSON prints one {"hash","label","cost"} object per line.
	JSON
)

func (m Mode) String() string {
	if m == JSON {
		return "JSON"
	}
	return "TEXT"
}

// DefaultRate is the sample price, in satoshis per cost unit, used to
// express costs in BSV.
const DefaultRate uint64 = 50

// LabelHash identifies a label across runs: the first 6 bytes of its
// Keccak-256 digest as a big-endian integer, in base 32, zero-padded to 10
// characters.
func LabelHash(label string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	sum := h.Sum(nil)

	var buf [8]byte
	copy(buf[2:], sum[:6])
	s := strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 32)
	return strings.Repeat("0", 10-len(s)) + s
}

// formatUnits renders v scaled down by 10^decimals, always with a fractional
// part and without trailing zeros beyond the first ("1.0", "0.0105").
func formatUnits(v *big.Int, decimals int) string {
	s := v.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		frac = "0"
	}
	return whole + "." + frac
}

// Result is the measured cost of one labelled step.
type Result struct {
	Label string
	Cost  uint64
}

type jsonLine struct {
	Hash  string `json:"hash"`
	Label string `json:"label"`
	Cost  uint64 `json:"cost,string"`
}

// Reporter writes results in the selected mode.
type Reporter struct {
	W    io.Writer
	Mode Mode
	Rate uint64 // sat per unit; 0 = DefaultRate
}

// Report writes one result.
func (r *Reporter) Report(res Result) error {
	switch r.Mode {
	case Text:
		rate := r.Rate
		if rate == 0 {
			rate = DefaultRate
		}
		value := new(big.Int).Mul(new(big.Int).SetUint64(res.Cost), new(big.Int).SetUint64(rate))
		_, err := fmt.Fprintf(r.W, "%s: %d units (%s BSV @ %d sat/unit)\n",
			res.Label, res.Cost, formatUnits(value, 8), rate)
		return err
	case JSON:
		data, err := json.Marshal(jsonLine{Hash: LabelHash(res.Label), Label: res.Label, Cost: res.Cost})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.W, "%s\n", data)
		return err
	default:
		return fmt.Errorf("bench: unexpected mode %d", r.Mode)
	}
}
