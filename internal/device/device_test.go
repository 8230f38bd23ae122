package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	f, err := Lookup("pfet_06v0_dss")
	require.NoError(t, err)
	assert.Equal(t, PType, f.Polarity)
	assert.Equal(t, Rating6V0, f.Rating)
	assert.Equal(t, VariantDSS, f.Variant)
	assert.Equal(t, "pmos_dss", f.Model(true))
	assert.Equal(t, "pmos", f.Model(false))

	n, err := Lookup("nfet_06v0_nvt")
	require.NoError(t, err)
	assert.Equal(t, VariantNative, n.Variant)
	assert.Equal(t, "nmos", n.Model(true))

	for _, bad := range []string{"", "nfet", "xfet_03v3", "nfet_05v0", "pfet_06v0_nvt", "nfet_03v3_foo"} {
		_, err := Lookup(bad)
		assert.Error(t, err, "Lookup(%q)", bad)
	}
}

func TestAllNamesResolveInEverySuite(t *testing.T) {
	for _, s := range Suites() {
		for _, name := range s.Devices {
			setup, err := Resolve(s.ID, name)
			require.NoError(t, err, "%s/%s", s.ID, name)
			for _, m := range s.Metrics {
				assert.NotEmpty(t, setup.LevelsFor(m), "%s/%s/%s levels", s.ID, name, m.ID)
				sw := setup.Sweeps[m.ID]
				assert.False(t, sw == Sweep{}, "%s/%s/%s sweep", s.ID, name, m.ID)
			}
		}
	}
}

func TestIVVbsLabelsDifferFromValues(t *testing.T) {
	setup, err := Resolve(SuiteIVVbs, "nfet_03v3")
	require.NoError(t, err)

	lv := setup.Levels[LevelsVbs]
	require.Len(t, lv, 5)
	assert.Equal(t, "-2.48", lv[3].Label)
	assert.Equal(t, -2.475, lv[3].Value)
	assert.Equal(t, 3, IndexOf(lv, -2.475))
	assert.Equal(t, -1, IndexOf(lv, -2.48))
}

func TestNativeDeviceTables(t *testing.T) {
	vbs, err := Resolve(SuiteIVVbs, "nfet_06v0_nvt")
	require.NoError(t, err)
	assert.Equal(t, "-3", vbs.Levels[LevelsVbs][4].Label)
	assert.Equal(t, "-0.5 6 0.05", vbs.Sweeps["Id"].Vgs.String())

	vgs, err := Resolve(SuiteIVVgs, "nfet_06v0_nvt")
	require.NoError(t, err)
	assert.Equal(t, "0.25", vgs.Levels[LevelsVgs][0].Label)
	assert.Equal(t, "0.25 6 1.15", vgs.Sweeps["Rds"].Vgs.String())

	cv, err := Resolve(SuiteCV, "nfet_06v0_nvt")
	require.NoError(t, err)
	assert.Len(t, cv.Levels[LevelsVbs], 4)
	assert.InDelta(t, 0.42, cv.Diffusion, 1e-12)
}

func TestPTypeZeroLabel(t *testing.T) {
	setup, err := Resolve(SuiteCV, "pfet_03v3")
	require.NoError(t, err)
	zero := setup.Levels[LevelsVgs][0]
	assert.Equal(t, "-0", zero.Label)
	assert.True(t, zero.Matches(0))
	assert.InDelta(t, 0.44, setup.Diffusion, 1e-12)
}

func TestRdsReciprocalOnlyForSixVolt(t *testing.T) {
	s, err := SuiteByID(SuiteIVVgs)
	require.NoError(t, err)
	rds, ok := s.Metric("Rds")
	require.True(t, ok)

	assert.True(t, rds.Reciprocate(MustLookup("nfet_06v0")))
	assert.True(t, rds.Reciprocate(MustLookup("pfet_06v0_dss")))
	assert.False(t, rds.Reciprocate(MustLookup("nfet_06v0_nvt")))
	assert.False(t, rds.Reciprocate(MustLookup("nfet_03v3")))

	id, _ := s.Metric("Id")
	assert.False(t, id.Reciprocate(MustLookup("nfet_06v0")))
}

func TestMetricColumnNames(t *testing.T) {
	s, err := SuiteByID(SuiteIVVgs)
	require.NoError(t, err)
	rds, _ := s.Metric("Rds")

	assert.Equal(t, 5, rds.Block(2))
	assert.Equal(t, "vb6", rds.SimColumn(5))
	assert.Equal(t, "measured_vgs1", rds.MeasuredColumn(0))
	assert.Equal(t, "vds_step3_error", rds.StepColumn(2))
	assert.Equal(t, "pfet_03v3_netlists_Rds", rds.NetlistDir("pfet_03v3"))

	cv, err := SuiteByID(SuiteCV)
	require.NoError(t, err)
	cgd, _ := cv.Metric("Cgd")
	assert.Equal(t, TableCgd, cgd.Table)
	assert.Equal(t, "vgs2", cgd.SimColumn(1))
	assert.Equal(t, "step4_error", cgd.StepColumn(3))
	assert.Equal(t, "cv_gd", cgd.Template)
}

func TestTableLayoutNames(t *testing.T) {
	iv, _ := SuiteByID(SuiteIVVbs)
	layout, ok := iv.Table(TableIV)
	require.True(t, ok)
	assert.Equal(t, "measured_vbs3 =-0.825", layout.MeasuredName(3, "-0.825"))
	assert.Equal(t, "-vgs ", layout.FirstSweep.For(MustLookup("pfet_03v3")))
	assert.Equal(t, "Id (A)", layout.FirstExtra.For(MustLookup("nfet_03v3")))

	cv, _ := SuiteByID(SuiteCV)
	cgd, _ := cv.Table(TableCgd)
	assert.Equal(t, "measured_vgs0=-0", cgd.MeasuredName(0, "-0"))
	assert.Equal(t, 5, cgd.LevelSuffix.At(2))
}

func TestSuffixed(t *testing.T) {
	assert.Equal(t, "vgs (V)", Suffixed("vgs (V)", 0))
	assert.Equal(t, "vgs (V).3", Suffixed("vgs (V)", 3))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("-0 -3.3 -0.05")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: "-0", Stop: "-3.3", Step: "-0.05"}, r)
	assert.Equal(t, "-0 -3.3 -0.05", r.String())

	_, err = ParseRange("0 1")
	assert.Error(t, err)
	assert.Equal(t, "", Range{}.String())
}
