package device

import "fmt"

// Level set names.
const (
	LevelsVbs = "vbs"
	LevelsVgs = "vgs"
)

// Measured table names.
const (
	TableIV  = "iv"
	TableCgc = "cgc"
	TableCgs = "cgs"
	TableCgd = "cgd"
)

// class buckets families the way the bias tables are keyed.
type class string

const (
	classN03    class = "n03v3"
	classP03    class = "p03v3"
	classN06    class = "n06v0"
	classP06    class = "p06v0"
	classNative class = "n06v0_nvt"
)

func classOf(f Family) class {
	switch {
	case f.Variant == VariantNative:
		return classNative
	case f.IsPType() && f.Rating == Rating3V3:
		return classP03
	case f.IsPType():
		return classP06
	case f.Rating == Rating3V3:
		return classN03
	default:
		return classN06
	}
}

// The native device shares the 6 V NMOS level set everywhere except the
// Id-Vds sweep, which has its own gate levels.
func (c class) or(fallback class, table map[class][]Level) []Level {
	if l, ok := table[c]; ok {
		return l
	}
	return table[fallback]
}

// Id-Vgs at fixed Vbs. Workbook labels round -2.475 to -2.48.
var ivVbsLevels = map[class][]Level{
	classN03: levels([]float64{0, -0.825, -1.65, -2.475, -3.3}, "0", "-0.825", "-1.65", "-2.48", "-3.3"),
	classP03: levels([]float64{0, 0.825, 1.65, 2.475, 3.3}, "0", "0.825", "1.65", "2.48", "3.3"),
	classN06: levels([]float64{0, -0.75, -1.5, -2.25, -3}, "0", "-0.75", "-1.5", "-2.25", "-3"),
	classP06: levels([]float64{0, 0.75, 1.5, 2.25, 3}, "0", "0.75", "1.5", "2.25", "3"),
}

var ivVbsSweeps = map[class]Sweep{
	classN03:    {Vgs: mustRange("0 3.3 0.05"), Vbs: mustRange("0 -3.3 -0.825")},
	classP03:    {Vgs: mustRange("0 -3.3 -0.05"), Vbs: mustRange("0 3.3 0.825")},
	classN06:    {Vgs: mustRange("0 6 0.05"), Vbs: mustRange("0 -3 -0.75")},
	classP06:    {Vgs: mustRange("0 -6 -0.05"), Vbs: mustRange("0 3 0.75")},
	classNative: {Vgs: mustRange("-0.5 6 0.05"), Vbs: mustRange("0 -3 -0.75")},
}

// Id-Vds and Rds at fixed Vgs.
var ivVgsLevels = map[class][]Level{
	classN03:    levels([]float64{0.8, 1.3, 1.8, 2.3, 2.8, 3.3}, "0.8", "1.3", "1.8", "2.3", "2.8", "3.3"),
	classP03:    levels([]float64{-0.8, -1.3, -1.8, -2.3, -2.8, -3.3}, "-0.8", "-1.3", "-1.8", "-2.3", "-2.8", "-3.3"),
	classN06:    levels([]float64{1, 2, 3, 4, 5, 6}, "1", "2", "3", "4", "5", "6"),
	classP06:    levels([]float64{-1, -2, -3, -4, -5, -6}, "-1", "-2", "-3", "-4", "-5", "-6"),
	classNative: levels([]float64{0.25, 1.4, 2.55, 3.7, 4.85, 6}, "0.25", "1.4", "2.55", "3.7", "4.85", "6"),
}

var ivVgsSweeps = map[class]Sweep{
	classN03:    {Vds: mustRange("0 3.3 0.05"), Vgs: mustRange("0.8 3.3 0.5")},
	classP03:    {Vds: mustRange("-0 -3.3 -0.05"), Vgs: mustRange("-0.8 -3.3 -0.5")},
	classN06:    {Vds: mustRange("0 6.6 0.05"), Vgs: mustRange("1 6 1")},
	classP06:    {Vds: mustRange("-0 -6.6 -0.05"), Vgs: mustRange("-1 -6 -1")},
	classNative: {Vds: mustRange("0 6.6 0.05"), Vgs: mustRange("0.25 6 1.15")},
}

// C-V: Cgc at fixed Vbs, Cgd/Cgs at fixed Vgs. PMOS workbooks spell the
// zero level "-0".
var cvVbsLevels = map[class][]Level{
	classN03: levels([]float64{0, -0.825, -1.65, -2.475, -3.3}, "0", "-0.825", "-1.65", "-2.475", "-3.3"),
	classP03: levels([]float64{0, 0.825, 1.65, 2.475, 3.3}, "-0", "0.825", "1.65", "2.475", "3.3"),
	classN06: levels([]float64{0, -1, -2, -3}, "0", "-1", "-2", "-3"),
	classP06: levels([]float64{0, 1, 2, 3}, "-0", "1", "2", "3"),
}

var cvVgsLevels = map[class][]Level{
	classN03: levels([]float64{0, 1.1, 2.2, 3.3}, "0", "1.1", "2.2", "3.3"),
	classP03: levels([]float64{0, -1.1, -2.2, -3.3}, "-0", "-1.1", "-2.2", "-3.3"),
	classN06: levels([]float64{0, 2, 4, 6}, "0", "2", "4", "6"),
	classP06: levels([]float64{0, -2, -4, -6}, "-0", "-2", "-4", "-6"),
}

// cvRanges holds the gate-channel and gate-drain/source sweeps of one class.
type cvRanges struct {
	vbsC, vgsC, vgsD, vdsD Range
}

var cvSweeps = map[class]cvRanges{
	classN03: {mustRange("0 -3.3 -0.825"), mustRange("-3.3 3.3 0.1"), mustRange("0 3.4 1.1"), mustRange("0 3.3 0.1")},
	classP03: {mustRange("0 3.3 0.825"), mustRange("-3.3 3.3 0.1"), mustRange("0 -3.4 -1.1"), mustRange("0 -3.3 -0.1")},
	classN06: {mustRange("0 -3 -1"), mustRange("-6 6 0.1"), mustRange("0 6 2"), mustRange("0 6 0.1")},
	classP06: {mustRange("0 3 1"), mustRange("-6 6 0.1"), mustRange("0 -6 -2"), mustRange("0 -6 -0.1")},
}

// Contact spacing, enclosure and size that make up the diffusion extension.
const (
	compContSpcGate3V3 = 0.15
	compEncCont3V3     = 0.07
	contMinSize3V3     = 0.22
	compContSpcGate5V0 = 0.15
	compEncCont5V0     = 0.07
	contMinSize5V0     = 0.2

	ivDiffusion = 0.24
)

func cvDiffusion(f Family) float64 {
	if f.Rating == Rating6V0 {
		return compContSpcGate5V0 + compEncCont5V0 + contMinSize5V0
	}
	return compContSpcGate3V3 + compEncCont3V3 + contMinSize3V3
}

// Sweep carries the three terminal ranges a deck may use. Unused ranges are zero.
type Sweep struct {
	Vgs, Vds, Vbs Range
}

// Setup is the resolved configuration of one family within one suite.
type Setup struct {
	Suite     Suite
	Family    Family
	Levels    map[string][]Level // keyed by level set name
	Sweeps    map[string]Sweep   // keyed by metric id
	Diffusion float64
}

// LevelsFor returns the level set a metric renames against.
func (s *Setup) LevelsFor(m Metric) []Level { return s.Levels[m.LevelSet] }

// Resolve builds the setup of device name within suite id.
func Resolve(id SuiteID, name string) (*Setup, error) {
	suite, err := SuiteByID(id)
	if err != nil {
		return nil, err
	}
	fam, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	c := classOf(fam)

	s := &Setup{
		Suite:  suite,
		Family: fam,
		Levels: make(map[string][]Level),
		Sweeps: make(map[string]Sweep),
	}
	if suite.Diffusion != nil {
		s.Diffusion = suite.Diffusion(fam)
	}

	switch id {
	case SuiteIVVbs:
		s.Levels[LevelsVbs] = c.or(classN06, ivVbsLevels)
		s.Sweeps["Id"] = ivVbsSweeps[c]
	case SuiteIVVgs:
		s.Levels[LevelsVgs] = ivVgsLevels[c]
		s.Sweeps["Id"] = ivVgsSweeps[c]
		s.Sweeps["Rds"] = ivVgsSweeps[c]
	case SuiteCV:
		s.Levels[LevelsVbs] = c.or(classN06, cvVbsLevels)
		s.Levels[LevelsVgs] = c.or(classN06, cvVgsLevels)
		r, ok := cvSweeps[c]
		if !ok {
			r = cvSweeps[classN06]
		}
		s.Sweeps["Cgc"] = Sweep{Vgs: r.vgsC, Vds: r.vdsD, Vbs: r.vbsC}
		s.Sweeps["Cgd"] = Sweep{Vgs: r.vgsD, Vds: r.vdsD, Vbs: r.vbsC}
		s.Sweeps["Cgs"] = Sweep{Vgs: r.vgsD, Vds: r.vdsD, Vbs: r.vbsC}
	}

	for _, m := range suite.Metrics {
		if len(s.Levels[m.LevelSet]) == 0 {
			return nil, fmt.Errorf("device %s has no %s levels in suite %s", name, m.LevelSet, id)
		}
	}
	return s, nil
}

func isSixVolt(f Family) bool { return f.Rating == Rating6V0 && f.Variant != VariantNative }

var suites = []Suite{
	{
		ID:          SuiteIVVbs,
		Root:        "mos_iv_regr",
		Description: "MOS-iv-vbs",
		Devices:     Names,
		BucketTemps: true,
		Diffusion:   func(Family) float64 { return ivDiffusion },
		Metrics: []Metric{{
			ID:             "Id",
			Naming:         NamingTempLW,
			Template:       "iv_vbs_id",
			LevelSet:       LevelsVbs,
			Table:          TableIV,
			BlockMul:       2,
			Pivot:          "v(B_tn)",
			Value:          Signed{N: "-i(Vds)", P: "i(Vds)"},
			SimPrefix:      "vb",
			MeasuredPrefix: "measured_vbs",
			StepFormat:     "vgs_step%d_error",
			Floor:          true,
			NaN:            FillAfterRMS,
		}},
		Tables: []TableLayout{{
			Name:        TableIV,
			Scheme:      BlocksPerHalfRow,
			LevelSet:    LevelsVbs,
			LevelPrefix: Same("vbs ="),
			LevelSuffix: Affine{Mul: 1},
			Sweep:       Negated("vgs (V)"),
			FirstSweep:  Negated("vgs "),
			FirstExtra:  Negated("Id (A)"),
			SweepName:   "vgs",
			Kind:        "vbs",
			Sep:         " =",
			Temp:        true,
		}},
	},
	{
		ID:          SuiteIVVgs,
		Root:        "mos_iv_regr",
		Description: "MOS-iv-vgs",
		Devices:     Names,
		BucketTemps: true,
		Diffusion:   func(Family) float64 { return ivDiffusion },
		Metrics: []Metric{
			{
				ID:             "Id",
				Label:          "Id",
				Dir:            "_Id",
				Naming:         NamingTempWL,
				Template:       "iv_vgs_id",
				LevelSet:       LevelsVgs,
				Table:          TableIV,
				BlockMul:       2,
				Pivot:          "v(G_tn)",
				Value:          Signed{N: "-i(Vds)", P: "i(Vds)"},
				SimPrefix:      "vb",
				MeasuredPrefix: "measured_vgs",
				StepFormat:     "vds_step%d_error",
				Floor:          true,
				NaN:            FillBeforeError,
				Suffix:         "_Id",
				Tags:           true,
			},
			{
				ID:             "Rds",
				Label:          "Rds",
				Dir:            "_Rds",
				Naming:         NamingTempWL,
				Template:       "iv_vgs_rds",
				StressModel:    true,
				LevelSet:       LevelsVgs,
				Table:          TableIV,
				BlockMul:       2,
				BlockAdd:       1,
				Pivot:          "Vg",
				Value:          Same("Rds"),
				SimPrefix:      "vb",
				MeasuredPrefix: "measured_vgs",
				StepFormat:     "vds_step%d_error",
				Reciprocal:     isSixVolt,
				NaN:            FillBeforeError,
				Suffix:         "_Rds",
				Tags:           true,
			},
		},
		Tables: []TableLayout{{
			Name:        TableIV,
			Scheme:      BlocksPerHalfRow,
			LevelSet:    LevelsVgs,
			LevelPrefix: Same("vgs ="),
			LevelSuffix: Affine{Mul: 1},
			Sweep:       Negated("vds (V)"),
			FirstSweep:  Negated("vds (V)"),
			FirstExtra:  Negated("Id (A)"),
			SweepName:   "vds",
			Kind:        "vgs",
			Sep:         " =",
			Temp:        true,
		}},
	},
	{
		ID:          SuiteCV,
		Root:        "mos_cv_regr",
		Description: "MOS-CV",
		Devices: []string{
			"nfet_03v3",
			"pfet_03v3",
			"nfet_06v0",
			"pfet_06v0",
			"nfet_03v3_dss",
			"pfet_03v3_dss",
			"nfet_06v0_dss",
			"pfet_06v0_dss",
			"nfet_06v0_nvt",
		},
		HalfGeometry: true,
		FixedTemp:    25,
		Fingers:      true,
		Diffusion:    cvDiffusion,
		Metrics: []Metric{
			cvMetric("Cgc", TableCgc, LevelsVbs, "vb"),
			cvMetric("Cgd", TableCgd, LevelsVgs, "vgs"),
			cvMetric("Cgs", TableCgs, LevelsVgs, "vgs"),
		},
		Tables: []TableLayout{
			cvTable(TableCgc, LevelsVbs, "Vbs=", Negated("Vgs (V)"), "vgs", "vbs", Affine{Mul: 1}),
			cvTable(TableCgs, LevelsVgs, "Vgs=", Negated("Vds (V)"), "vds", "vgs", Affine{Mul: 2}),
			cvTable(TableCgd, LevelsVgs, "Vgs=", Negated("Vds (V)"), "vds", "vgs", Affine{Mul: 2, Add: 1}),
		},
	},
}

func cvMetric(id, tableName, levelSet, simPrefix string) Metric {
	return Metric{
		ID:             id,
		Label:          id,
		Dir:            "_" + id,
		Naming:         NamingWL,
		Template:       "cv_" + id[1:],
		StressModel:    true,
		LevelSet:       levelSet,
		Table:          tableName,
		BlockMul:       1,
		Pivot:          "Vg",
		Value:          Same("Cap"),
		SimPrefix:      simPrefix,
		MeasuredPrefix: "measured_v",
		StepFormat:     "step%d_error",
		NaN:            FillBeforeRMS,
		Suffix:         "_" + id,
		Tags:           true,
	}
}

func cvTable(name, levelSet, prefix string, sweep Signed, sweepName, kind string, suffix Affine) TableLayout {
	return TableLayout{
		Name:        name,
		Scheme:      BlocksPerRow,
		LevelSet:    levelSet,
		LevelPrefix: Same(prefix),
		LevelSuffix: suffix,
		Sweep:       sweep,
		SweepName:   sweepName,
		Kind:        kind,
		Sep:         "=",
	}
}

// Suites returns every suite in run order.
func Suites() []Suite {
	out := make([]Suite, len(suites))
	copy(out, suites)
	return out
}

// SuiteByID returns the suite with the given id.
func SuiteByID(id SuiteID) (Suite, error) {
	for _, s := range suites {
		if s.ID == id {
			return s, nil
		}
	}
	return Suite{}, fmt.Errorf("unknown suite %q", id)
}
