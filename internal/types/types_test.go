package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivationKeyIgnoresCauseOrder(t *testing.T) {
	a := Derivation{Output: "Separation", Causes: []string{"Sharp", "Solid", "Cut"}}
	b := Derivation{Output: "Separation", Causes: []string{"Cut", "Sharp", "Solid"}}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "Cut+Sharp+Solid->Separation", a.Key())
}

func TestDerivationKeyDistinguishesOutputs(t *testing.T) {
	a := Derivation{Output: "Alarm", Causes: []string{"Smoke"}}
	b := Derivation{Output: "Sprinkler", Causes: []string{"Smoke"}}

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestDerivationKeyDoesNotMutateCauses(t *testing.T) {
	d := Derivation{Output: "X", Causes: []string{"b", "a"}}
	_ = d.Key()
	assert.Equal(t, []string{"b", "a"}, d.Causes)
}

func TestEncodeCausesIsCanonical(t *testing.T) {
	assert.Equal(t,
		EncodeCauses([]string{"Smoke", "Heat"}),
		EncodeCauses([]string{"Heat", "Smoke"}))
}

func TestCauseEncodingRoundTripsCommaLabels(t *testing.T) {
	got, err := DecodeCauses(EncodeCauses([]string{"Alarm, Armed", "Door Open"}))
	assert.NoError(t, err)
	assert.Equal(t, []string{"Alarm, Armed", "Door Open"}, got)
}

func TestDecodeCausesRejectsMalformedInput(t *testing.T) {
	_, err := DecodeCauses("Heat,Smoke")
	assert.Error(t, err)
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "input", SourceInput.String())
	assert.Equal(t, "derived", SourceDerived.String())
	assert.Equal(t, "source(7)", SourceKind(7).String())
}
