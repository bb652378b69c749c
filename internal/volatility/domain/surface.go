package domain

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SurfaceBuilder orchestrates simulate -> value -> invert across a
// strike x tenor grid. Cells are fully independent, so the grid is the unit
// of parallelism; each cell gets its own deterministically derived seed to
// keep random streams disjoint across workers.
type SurfaceBuilder struct {
	solver  *ImpliedVolSolver
	workers int
}

// NewSurfaceBuilder 创建曲面构建器；workers<=0 时使用 GOMAXPROCS。
func NewSurfaceBuilder(solver *ImpliedVolSolver, workers int) *SurfaceBuilder {
	if solver == nil {
		solver = NewImpliedVolSolver()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &SurfaceBuilder{solver: solver, workers: workers}
}

// BuildSurface prices a call per (expiry, strike%) cell and inverts it into an
// implied volatility. The result always holds exactly
// len(expiries) x len(strikesPct) points in grid order; non-converged cells
// are flagged, never dropped. The caller's deadline is honored between, never
// within, cell computations.
func (b *SurfaceBuilder) BuildSurface(ctx context.Context, params ModelParameters, spot, rate, dividend float64, strikesPct, expiries []float64, numPaths int, seed int64) (*VolSurface, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidParameter, spot)
	}
	if numPaths < 1 {
		return nil, fmt.Errorf("%w: num_paths must be at least 1, got %d", ErrInvalidParameter, numPaths)
	}
	if len(strikesPct) == 0 || len(expiries) == 0 {
		return nil, fmt.Errorf("%w: strike and expiry grids must be non-empty", ErrInvalidParameter)
	}
	for _, pct := range strikesPct {
		if pct <= 0 {
			return nil, fmt.Errorf("%w: strike percentage must be positive, got %v", ErrInvalidParameter, pct)
		}
	}
	for _, t := range expiries {
		if t <= 0 {
			return nil, fmt.Errorf("%w: expiry must be positive, got %v", ErrInvalidParameter, t)
		}
	}

	points := make([][]SurfacePoint, len(expiries))
	for i := range points {
		points[i] = make([]SurfacePoint, len(strikesPct))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, expiry := range expiries {
		for j, strikePct := range strikesPct {
			cell := i*len(strikesPct) + j
			g.Go(func() error {
				// Deadline check between cells only; a started cell
				// runs to completion.
				if err := gctx.Err(); err != nil {
					return err
				}

				point, err := b.computeCell(params, spot, rate, dividend, expiry, strikePct, numPaths, cellSeed(seed, cell))
				if err != nil {
					return err
				}
				points[i][j] = point
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	skew := make([]float64, len(expiries))
	for i := range expiries {
		row := points[i]
		skew[i] = row[0].ImpliedVol - row[len(row)-1].ImpliedVol
	}

	return &VolSurface{
		Expiries:     expiries,
		StrikesPct:   strikesPct,
		Points:       points,
		SkewByExpiry: skew,
	}, nil
}

func (b *SurfaceBuilder) computeCell(params ModelParameters, spot, rate, dividend, expiry, strikePct float64, numPaths int, seed int64) (SurfacePoint, error) {
	contract := ContractSpec{
		Spot:     spot,
		Strike:   spot * strikePct / 100,
		Maturity: expiry,
		Rate:     rate,
		Dividend: dividend,
		Type:     OptionTypeCall,
	}

	cfg := SimulationConfig{
		NumPaths: numPaths,
		NumSteps: StepsForMaturity(expiry),
		Seed:     seed,
	}

	sim := NewPathSimulator(params, seed)
	terminal, err := sim.SimulateTerminal(spot, rate, dividend, expiry, cfg)
	if err != nil {
		return SurfacePoint{}, err
	}

	price, err := ValueOption(terminal.Prices, contract)
	if err != nil {
		return SurfacePoint{}, err
	}

	iv := b.solver.Solve(price.Price, contract)

	return SurfacePoint{
		Expiry:     expiry,
		StrikePct:  strikePct,
		ImpliedVol: iv.Vol,
		Converged:  iv.Converged,
	}, nil
}

// cellSeed derives a disjoint per-cell seed from the base seed. The stride is
// large enough that no two cells of a realistic grid collide.
func cellSeed(base int64, cell int) int64 {
	return base + int64(cell)*1_000_003
}
