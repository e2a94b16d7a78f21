package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Model is the stacked recurrent network:
// LSTM(h1, sequences) -> Dropout -> LSTM(h2) -> Dropout -> Dense(1).
type Model struct {
	lookBack int
	features int
	dropout  float64
	l1       *lstmLayer
	l2       *lstmLayer
	out      *denseLayer
}

// NewModel builds an untrained model with weights drawn from cfg.Seed.
func NewModel(cfg Config) *Model {
	src := rand.NewPCG(cfg.Seed, 0x6c73746d)
	features := len(cfg.Columns)

	return &Model{
		lookBack: cfg.LookBack,
		features: features,
		dropout:  cfg.DropoutRate,
		l1:       newLSTMLayer(features, cfg.Hidden1, src),
		l2:       newLSTMLayer(cfg.Hidden1, cfg.Hidden2, src),
		out:      newDenseLayer(cfg.Hidden2, src),
	}
}

func (m *Model) LookBack() int { return m.lookBack }
func (m *Model) Features() int { return m.features }

func (m *Model) parameters() [][]float64 {
	var res [][]float64
	res = append(res, m.l1.tensors()...)
	res = append(res, m.l2.tensors()...)
	res = append(res, m.out.tensors()...)
	return res
}

// Predict runs inference on a single [lookBack][features] window.
func (m *Model) Predict(window [][]float64) (float64, error) {
	if err := m.checkShape(window); err != nil {
		return 0, err
	}

	hs1, _ := m.l1.forward(toVectors(window))
	hs2, _ := m.l2.forward(hs1)
	return m.out.forward(hs2[len(hs2)-1]), nil
}

func (m *Model) checkShape(window [][]float64) error {
	if len(window) != m.lookBack {
		return fmt.Errorf("%w: got %d steps, want %d", ErrShapeMismatch, len(window), m.lookBack)
	}
	for t, row := range window {
		if len(row) != m.features {
			return fmt.Errorf("%w: step %d has %d features, want %d", ErrShapeMismatch, t, len(row), m.features)
		}
	}
	return nil
}

// Fit trains the model with mean squared error and Adam. It blocks until all
// epochs complete, ctx is done, or the loss stops being finite, and returns
// the mean training loss of each epoch.
func (m *Model) Fit(ctx context.Context, windows []Window, cfg Config, log logrus.FieldLogger) ([]float64, error) {
	if len(windows) == 0 {
		return nil, fmt.Errorf("fitting model: %w", ErrInsufficientHistory)
	}
	for i, w := range windows {
		if err := m.checkShape(w.Input); err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
	}

	workers := max(cfg.Workers, 1)
	params := m.parameters()
	opt := newAdam(cfg.LearningRate, params)

	workerGrads := make([]*gradients, workers)
	for i := range workerGrads {
		workerGrads[i] = newGradients(m)
	}
	total := newGradients(m)
	workerLoss := make([]float64, workers)

	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}
	shuffler := rand.New(rand.NewPCG(cfg.Seed, 0x73687566))

	history := make([]float64, 0, cfg.Epochs)
	step := uint64(0)

	for epoch := range cfg.Epochs {
		start := time.Now()
		shuffler.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		epochLoss := 0.0
		for lo := 0; lo < len(order); lo += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, fmt.Errorf("%w after %d epochs: %w", ErrCanceled, epoch, err)
			}

			batch := order[lo:min(lo+cfg.BatchSize, len(order))]
			scale := 1 / float64(len(batch))
			jobs, nWorkers := GetNumberOfJobsAndWorkers(len(batch), (len(batch)+workers-1)/workers, workers)

			g, gctx := errgroup.WithContext(ctx)
			for w := range nWorkers {
				grads := workerGrads[w]
				grads.reset()
				workerLoss[w] = 0
				j := jobs[w]
				g.Go(func() error {
					for k := j.start; k < j.end; k++ {
						if err := gctx.Err(); err != nil {
							return err
						}
						rng := rand.New(rand.NewPCG(cfg.Seed^step, uint64(k)))
						workerLoss[w] += m.accumulate(windows[batch[k]], rng, grads, scale)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return history, fmt.Errorf("%w after %d epochs: %w", ErrCanceled, epoch, err)
			}

			// reduce in worker order so a fixed seed gives a fixed model
			total.reset()
			batchLoss := 0.0
			for w := range nWorkers {
				total.add(workerGrads[w])
				batchLoss += workerLoss[w]
			}

			if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
				return history, fmt.Errorf("epoch %d: %w", epoch+1, ErrNumericalInstability)
			}

			opt.step(params, total.tensors())
			epochLoss += batchLoss
			step++
		}

		epochLoss /= float64(len(windows))
		history = append(history, epochLoss)
		log.WithFields(logrus.Fields{
			"epoch":   epoch + 1,
			"epochs":  cfg.Epochs,
			"loss":    epochLoss,
			"elapsed": time.Since(start).String(),
		}).Info("epoch complete")
	}

	return history, nil
}

// accumulate runs one training sample forward and backward, adding its
// gradients (scaled by scale) into g. It returns the squared error.
func (m *Model) accumulate(w Window, rng *rand.Rand, g *gradients, scale float64) float64 {
	xs := toVectors(w.Input)

	hs1, steps1 := m.l1.forward(xs)
	masks1 := make([][]float64, len(hs1))
	dropped1 := make([]*mat.VecDense, len(hs1))
	for t, h := range hs1 {
		masks1[t] = dropoutMask(h.Len(), m.dropout, rng)
		dropped1[t] = applyMask(h, masks1[t])
	}

	hs2, steps2 := m.l2.forward(dropped1)
	last := hs2[len(hs2)-1]
	mask2 := dropoutMask(last.Len(), m.dropout, rng)
	dropped2 := applyMask(last, mask2)

	y := m.out.forward(dropped2)
	diff := y - w.Label
	dy := 2 * diff * scale

	g.out.w.AddScaledVec(g.out.w, dy, dropped2)
	g.out.b[0] += dy

	dh2 := make([][]float64, len(steps2))
	dLast := make([]float64, last.Len())
	for k := range dLast {
		dLast[k] = dy * m.out.w.AtVec(k) * mask2[k]
	}
	dh2[len(dh2)-1] = dLast

	dxs2 := m.l2.backward(steps2, dh2, g.l2, true)

	dh1 := make([][]float64, len(steps1))
	for t, dx := range dxs2 {
		d := make([]float64, dx.Len())
		for k := range d {
			d[k] = dx.AtVec(k) * masks1[t][k]
		}
		dh1[t] = d
	}
	m.l1.backward(steps1, dh1, g.l1, false)

	return diff * diff
}

type gradients struct {
	l1  lstmGrads
	l2  lstmGrads
	out denseGrads
}

func newGradients(m *Model) *gradients {
	return &gradients{
		l1:  newLSTMGrads(m.l1),
		l2:  newLSTMGrads(m.l2),
		out: newDenseGrads(m.out),
	}
}

// tensors lists gradient storage in the same order as Model.parameters.
func (g *gradients) tensors() [][]float64 {
	var res [][]float64
	res = append(res, g.l1.tensors()...)
	res = append(res, g.l2.tensors()...)
	res = append(res, g.out.tensors()...)
	return res
}

func (g *gradients) reset() {
	for _, t := range g.tensors() {
		clear(t)
	}
}

func (g *gradients) add(other *gradients) {
	dst := g.tensors()
	for i, src := range other.tensors() {
		for k, v := range src {
			dst[i][k] += v
		}
	}
}

func toVectors(window [][]float64) []*mat.VecDense {
	xs := make([]*mat.VecDense, len(window))
	for t, row := range window {
		xs[t] = mat.NewVecDense(len(row), row)
	}
	return xs
}
