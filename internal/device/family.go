// Package device holds the static description of every device family under
// regression: polarity, voltage rating, bias level sets, sweep ranges, and the
// spreadsheet column layouts the measured workbooks follow. Everything here is
// resolved once at startup from declarative tables.
package device

import (
	"fmt"
	"strings"
)

// Polarity is the carrier type of a family.
type Polarity int

const (
	NType Polarity = iota
	PType
)

func (p Polarity) String() string {
	if p == PType {
		return "p"
	}
	return "n"
}

// Rating is the nominal supply rating encoded in the device name.
type Rating string

const (
	Rating3V3 Rating = "03v3"
	Rating6V0 Rating = "06v0"
)

// Variant distinguishes the drain-source stress and native sub-variants.
type Variant string

const (
	VariantNone   Variant = ""
	VariantDSS    Variant = "dss"
	VariantNative Variant = "nvt"
)

// Family identifies one device under test.
type Family struct {
	Name     string
	Polarity Polarity
	Rating   Rating
	Variant  Variant
}

// Names lists the known devices in the order the IV suites visit them.
var Names = []string{
	"nfet_03v3",
	"pfet_03v3",
	"nfet_06v0",
	"pfet_06v0",
	"nfet_06v0_nvt",
	"nfet_03v3_dss",
	"pfet_03v3_dss",
	"nfet_06v0_dss",
	"pfet_06v0_dss",
}

// Lookup parses a device name such as "pfet_06v0_dss".
func Lookup(name string) (Family, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 2 || len(parts) > 3 {
		return Family{}, fmt.Errorf("unknown device %q", name)
	}

	f := Family{Name: name}
	switch parts[0] {
	case "nfet":
		f.Polarity = NType
	case "pfet":
		f.Polarity = PType
	default:
		return Family{}, fmt.Errorf("unknown device %q: bad polarity %q", name, parts[0])
	}

	switch Rating(parts[1]) {
	case Rating3V3, Rating6V0:
		f.Rating = Rating(parts[1])
	default:
		return Family{}, fmt.Errorf("unknown device %q: bad rating %q", name, parts[1])
	}

	if len(parts) == 3 {
		switch Variant(parts[2]) {
		case VariantDSS:
			f.Variant = VariantDSS
		case VariantNative:
			if f.Polarity != NType || f.Rating != Rating6V0 {
				return Family{}, fmt.Errorf("unknown device %q: native variant only exists for nfet_06v0", name)
			}
			f.Variant = VariantNative
		default:
			return Family{}, fmt.Errorf("unknown device %q: bad variant %q", name, parts[2])
		}
	}
	return f, nil
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Family {
	f, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return f
}

// IsPType reports whether the family is p-channel.
func (f Family) IsPType() bool { return f.Polarity == PType }

// Model returns the deck model name: nmos, pmos, or their _dss forms when
// stress is true and the family is a dss variant.
func (f Family) Model(stress bool) string {
	model := "nmos"
	if f.IsPType() {
		model = "pmos"
	}
	if stress && f.Variant == VariantDSS {
		model += "_dss"
	}
	return model
}

func (f Family) String() string { return f.Name }

// Signed is a column name spelled once for n-type and once for p-type
// workbooks, which record negated voltages and currents for PMOS.
type Signed struct {
	N, P string
}

// Same spells the name identically for both polarities.
func Same(name string) Signed { return Signed{N: name, P: name} }

// Negated prefixes the p-type spelling with a minus sign.
func Negated(name string) Signed { return Signed{N: name, P: "-" + name} }

// For returns the spelling for a family.
func (s Signed) For(f Family) string {
	if f.IsPType() {
		return s.P
	}
	return s.N
}

// IsZero reports whether neither spelling is set.
func (s Signed) IsZero() bool { return s.N == "" && s.P == "" }
