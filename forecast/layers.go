package forecast

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// lstmLayer holds the weights of one LSTM layer. Gates are stacked in the
// order input, forget, cell, output along the first dimension.
type lstmLayer struct {
	in    int
	units int
	w     *mat.Dense    // 4*units x in
	u     *mat.Dense    // 4*units x units
	b     *mat.VecDense // 4*units
}

// lstmStep caches what backpropagation needs from one time step.
type lstmStep struct {
	x     *mat.VecDense
	hPrev *mat.VecDense
	cPrev []float64
	i     []float64
	f     []float64
	g     []float64
	o     []float64
	tc    []float64 // tanh(c)
}

type lstmGrads struct {
	w *mat.Dense
	u *mat.Dense
	b *mat.VecDense
}

func newLSTMLayer(in, units int, src rand.Source) *lstmLayer {
	l := &lstmLayer{
		in:    in,
		units: units,
		w:     mat.NewDense(4*units, in, nil),
		u:     mat.NewDense(4*units, units, nil),
		b:     mat.NewVecDense(4*units, nil),
	}

	glorotUniform(l.w.RawMatrix().Data, in, 4*units, src)
	for gate := range 4 {
		q := orthogonal(units, src)
		l.u.Slice(gate*units, (gate+1)*units, 0, units).(*mat.Dense).Copy(q)
	}

	// forget gate starts open
	for k := units; k < 2*units; k++ {
		l.b.SetVec(k, 1)
	}

	return l
}

func newLSTMGrads(l *lstmLayer) lstmGrads {
	return lstmGrads{
		w: mat.NewDense(4*l.units, l.in, nil),
		u: mat.NewDense(4*l.units, l.units, nil),
		b: mat.NewVecDense(4*l.units, nil),
	}
}

func (g lstmGrads) tensors() [][]float64 {
	return [][]float64{g.w.RawMatrix().Data, g.u.RawMatrix().Data, g.b.RawVector().Data}
}

func (l *lstmLayer) tensors() [][]float64 {
	return [][]float64{l.w.RawMatrix().Data, l.u.RawMatrix().Data, l.b.RawVector().Data}
}

// forward runs the layer over the sequence and returns the hidden state of
// every step along with the per-step caches.
func (l *lstmLayer) forward(xs []*mat.VecDense) ([]*mat.VecDense, []lstmStep) {
	n := l.units
	hs := make([]*mat.VecDense, len(xs))
	steps := make([]lstmStep, len(xs))

	h := mat.NewVecDense(n, nil)
	c := make([]float64, n)
	z := mat.NewVecDense(4*n, nil)
	rec := mat.NewVecDense(4*n, nil)

	for t, x := range xs {
		z.MulVec(l.w, x)
		rec.MulVec(l.u, h)
		z.AddVec(z, rec)
		z.AddVec(z, l.b)
		zr := z.RawVector().Data

		st := lstmStep{
			x:     x,
			hPrev: h,
			cPrev: c,
			i:     make([]float64, n),
			f:     make([]float64, n),
			g:     make([]float64, n),
			o:     make([]float64, n),
			tc:    make([]float64, n),
		}

		cNext := make([]float64, n)
		hNext := make([]float64, n)
		for k := range n {
			st.i[k] = sigmoid(zr[k])
			st.f[k] = sigmoid(zr[n+k])
			st.g[k] = math.Tanh(zr[2*n+k])
			st.o[k] = sigmoid(zr[3*n+k])
			cNext[k] = st.f[k]*c[k] + st.i[k]*st.g[k]
			st.tc[k] = math.Tanh(cNext[k])
			hNext[k] = st.o[k] * st.tc[k]
		}

		steps[t] = st
		h = mat.NewVecDense(n, hNext)
		c = cNext
		hs[t] = h
	}

	return hs, steps
}

// backward accumulates gradients into g given the loss gradient with respect
// to each step's hidden output (nil entries mean zero). It returns the
// gradient with respect to each step's input when wantInput is set.
func (l *lstmLayer) backward(steps []lstmStep, dhs [][]float64, g lstmGrads, wantInput bool) []*mat.VecDense {
	n := l.units
	var dxs []*mat.VecDense
	if wantInput {
		dxs = make([]*mat.VecDense, len(steps))
	}

	dhNext := mat.NewVecDense(n, nil)
	dcNext := make([]float64, n)
	dz := mat.NewVecDense(4*n, nil)

	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		dzr := dz.RawVector().Data
		dhn := dhNext.RawVector().Data

		for k := range n {
			dh := dhn[k]
			if dhs[t] != nil {
				dh += dhs[t][k]
			}

			do := dh * st.tc[k]
			dc := dh*st.o[k]*(1-st.tc[k]*st.tc[k]) + dcNext[k]
			di := dc * st.g[k]
			dg := dc * st.i[k]
			df := dc * st.cPrev[k]

			dzr[k] = di * st.i[k] * (1 - st.i[k])
			dzr[n+k] = df * st.f[k] * (1 - st.f[k])
			dzr[2*n+k] = dg * (1 - st.g[k]*st.g[k])
			dzr[3*n+k] = do * st.o[k] * (1 - st.o[k])

			dcNext[k] = dc * st.f[k]
		}

		g.w.RankOne(g.w, 1, dz, st.x)
		g.u.RankOne(g.u, 1, dz, st.hPrev)
		g.b.AddVec(g.b, dz)

		if wantInput {
			dx := mat.NewVecDense(l.in, nil)
			dx.MulVec(l.w.T(), dz)
			dxs[t] = dx
		}

		next := mat.NewVecDense(n, nil)
		next.MulVec(l.u.T(), dz)
		dhNext = next
	}

	return dxs
}

// denseLayer is a fully connected layer with a single output unit.
type denseLayer struct {
	w *mat.VecDense
	b []float64
}

type denseGrads struct {
	w *mat.VecDense
	b []float64
}

func newDenseLayer(in int, src rand.Source) *denseLayer {
	d := &denseLayer{
		w: mat.NewVecDense(in, nil),
		b: make([]float64, 1),
	}
	glorotUniform(d.w.RawVector().Data, in, 1, src)
	return d
}

func newDenseGrads(d *denseLayer) denseGrads {
	return denseGrads{
		w: mat.NewVecDense(d.w.Len(), nil),
		b: make([]float64, 1),
	}
}

func (d *denseLayer) tensors() [][]float64 {
	return [][]float64{d.w.RawVector().Data, d.b}
}

func (g denseGrads) tensors() [][]float64 {
	return [][]float64{g.w.RawVector().Data, g.b}
}

func (d *denseLayer) forward(h *mat.VecDense) float64 {
	return mat.Dot(d.w, h) + d.b[0]
}

// dropoutMask draws an inverted dropout mask: dropped units are 0 and kept
// units are scaled by 1/(1-rate).
func dropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	mask := make([]float64, n)
	keep := 1 / (1 - rate)
	for k := range mask {
		if rng.Float64() >= rate {
			mask[k] = keep
		}
	}
	return mask
}

func applyMask(v *mat.VecDense, mask []float64) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for k, m := range mask {
		out.SetVec(k, v.AtVec(k)*m)
	}
	return out
}

func glorotUniform(dst []float64, fanIn, fanOut int, src rand.Source) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
	for k := range dst {
		dst[k] = dist.Rand()
	}
}

// orthogonal returns an n x n orthogonal matrix from the QR decomposition of
// a standard normal draw.
func orthogonal(n int, src rand.Source) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	data := make([]float64, n*n)
	for k := range data {
		data[k] = dist.Rand()
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(n, n, data))

	q := new(mat.Dense)
	qr.QTo(q)
	return q
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
