package calibration

import "fmt"

// Stats is an aggregate win rate (fraction) and mean return (percent)
type Stats struct {
	N         int     `json:"n"`
	WinRate   float64 `json:"winRate"`
	AvgReturn float64 `json:"avgReturn"`
}

// Reduction is everything derived from the combined sample set
type Reduction struct {
	Base       Stats
	Calibrated Stats
	Weights    Weights
	Curve      []Bucket
}

// StrategyWeight is clamp(0.5, 1.5, 0.5 + winRate + avgReturn/10)
func StrategyWeight(winRate, avgReturn float64) float64 {
	return clamp(0.5, 1.5, 0.5+winRate+avgReturn/10)
}

// ConfidenceFactor is clamp(0.5, 1.5, 0.5 + winRate) for buckets with at
// least MinSampleSizePerBucket samples and exactly 1.0 otherwise
func ConfidenceFactor(winRate float64, sampleSize int) float64 {
	if sampleSize < MinSampleSizePerBucket {
		return 1.0
	}
	return clamp(0.5, 1.5, 0.5+winRate)
}

// BucketIndex maps a score to its curve bucket
func BucketIndex(score float64) int {
	i := int(score) / BucketWidth
	if i < 0 {
		return 0
	}
	if i >= BucketCount {
		return BucketCount - 1
	}
	return i
}

type tally struct {
	n      int
	hits   int
	sumRet float64
}

func (t *tally) add(s Sample) {
	t.n++
	if s.Hit {
		t.hits++
	}
	t.sumRet += s.ReturnPct
}

func (t tally) stats() Stats {
	if t.n == 0 {
		return Stats{}
	}
	return Stats{N: t.n, WinRate: float64(t.hits) / float64(t.n), AvgReturn: t.sumRet / float64(t.n)}
}

// Reduce computes baseline, weights, curve, and calibrated metrics. Samples
// are consumed in the order given, so equal inputs give equal floats.
func Reduce(samples []Sample) Reduction {
	var base tally
	groups := make(map[string]map[string]*tally)
	var buckets [BucketCount]tally

	for _, s := range samples {
		base.add(s)
		byRegime, ok := groups[s.Strategy]
		if !ok {
			byRegime = make(map[string]*tally)
			groups[s.Strategy] = byRegime
		}
		t, ok := byRegime[s.Regime]
		if !ok {
			t = &tally{}
			byRegime[s.Regime] = t
		}
		t.add(s)
		buckets[BucketIndex(s.Score)].add(s)
	}

	weights := make(Weights, len(groups))
	for name, byRegime := range groups {
		weights[name] = make(map[string]float64, len(byRegime))
		for reg, t := range byRegime {
			st := t.stats()
			weights[name][reg] = StrategyWeight(st.WinRate, st.AvgReturn)
		}
	}

	curve := make([]Bucket, BucketCount)
	for i := range curve {
		st := buckets[i].stats()
		curve[i] = Bucket{
			ScoreBucketMin:   i * BucketWidth,
			ScoreBucketMax:   i*BucketWidth + BucketWidth - 1,
			WinRate:          st.WinRate,
			AvgReturn:        st.AvgReturn,
			SampleSize:       st.N,
			ConfidenceFactor: ConfidenceFactor(st.WinRate, st.N),
		}
	}

	var wSum, wHits, wRet float64
	for _, s := range samples {
		w := weights[s.Strategy][s.Regime] * curve[BucketIndex(s.Score)].ConfidenceFactor
		wSum += w
		if s.Hit {
			wHits += w
		}
		wRet += w * s.ReturnPct
	}
	calibrated := Stats{N: len(samples)}
	if wSum > 0 {
		calibrated.WinRate = wHits / wSum
		calibrated.AvgReturn = wRet / wSum
	}

	return Reduction{Base: base.stats(), Calibrated: calibrated, Weights: weights, Curve: curve}
}

// Gate applies calibration only when the calibrated win rate strictly beats
// the baseline. Average return is reported but does not vote.
func Gate(r Reduction) BenchmarkComparison {
	cmp := BenchmarkComparison{
		WinRateBase:         r.Base.WinRate,
		WinRateCalibrated:   r.Calibrated.WinRate,
		AvgReturnBase:       r.Base.AvgReturn,
		AvgReturnCalibrated: r.Calibrated.AvgReturn,
	}
	if r.Calibrated.WinRate > r.Base.WinRate {
		cmp.CalibrationApplied = true
		cmp.Reason = fmt.Sprintf("calibrated win rate %.4f beats base %.4f", r.Calibrated.WinRate, r.Base.WinRate)
	} else {
		cmp.Reason = fmt.Sprintf("calibration rejected: calibrated win rate %.4f does not beat base %.4f", r.Calibrated.WinRate, r.Base.WinRate)
	}
	return cmp
}
