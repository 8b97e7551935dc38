package similarity

import (
	"math"
	"sort"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/riskibarqy/moneyball/internal/domain/feature"
	"github.com/riskibarqy/moneyball/internal/domain/player"
)

// Config holds construction-time choices of an Engine.
type Config struct {
	Scaler ScalerKind
	// Neighbors is the k Warm builds the index with. Zero means
	// DefaultNeighbors.
	Neighbors int
}

// PrepareOptions narrows the snapshot and picks the feature space.
// Empty Features derive from Position through the feature catalog.
type PrepareOptions struct {
	Features   []string
	Position   string
	MinMinutes float64
}

// Result is one ranked entry of a similarity query.
type Result struct {
	Rank        int
	Player      string
	Position    string
	Club        string
	Competition string
	Similarity  float64
}

// Engine owns a private copy of a season table and answers "who plays
// like X" queries over it. It is synchronous and not safe for concurrent
// Prepare; read queries may run concurrently once the matrix or index for
// the requested mode and metric has been built.
type Engine struct {
	table      player.Table
	scalerKind ScalerKind
	neighbors  int

	state      State
	rows       []player.Record
	features   []string
	scaler     scaler
	normalized *mat.Dense

	matrix       *mat.SymDense
	matrixMetric Metric
	index        *neighborIndex
}

func New(table player.Table, cfg Config) (*Engine, error) {
	kind, err := ParseScaler(string(cfg.Scaler))
	if err != nil {
		return nil, err
	}
	return &Engine{
		table:      table.Clone(),
		scalerKind: kind,
		neighbors:  cfg.Neighbors,
		state:      StateUnprepared,
	}, nil
}

func (e *Engine) State() State {
	return e.state
}

// Len is the number of retained rows after the last Prepare.
func (e *Engine) Len() int {
	return len(e.rows)
}

// Features is the feature list resolved by the last Prepare.
func (e *Engine) Features() []string {
	out := make([]string, len(e.features))
	copy(out, e.features)
	return out
}

// Prepare filters the snapshot, resolves the feature list, fits a fresh
// scaler and discards any cached matrix or index.
func (e *Engine) Prepare(opts PrepareOptions) error {
	rows := make([]player.Record, 0, len(e.table.Records))
	position := strings.TrimSpace(opts.Position)
	filterMinutes := opts.MinMinutes > 0 && e.table.HasColumn(player.ColumnMinutes)

	for _, r := range e.table.Records {
		if filterMinutes {
			minutes, ok := finiteStat(r, player.ColumnMinutes)
			if !ok || minutes < opts.MinMinutes {
				continue
			}
		}
		if position != "" && !strings.EqualFold(r.PrimaryPosition(), position) {
			continue
		}
		rows = append(rows, r)
	}

	requested := opts.Features
	if len(requested) == 0 {
		requested = feature.FeaturesFor(position)
	}
	features := feature.Filter(requested, e.table.HasColumn)
	if len(features) == 0 {
		return crerr.Wrapf(ErrEmptyFeatureSet, "requested %v", requested)
	}
	if len(rows) == 0 {
		return crerr.Wrapf(ErrNoRows, "position %q min minutes %v", position, opts.MinMinutes)
	}

	raw := mat.NewDense(len(rows), len(features), nil)
	for i, r := range rows {
		for j, f := range features {
			if v, ok := finiteStat(r, f); ok {
				raw.Set(i, j, v)
			}
		}
	}

	sc := newScaler(e.scalerKind)
	sc.fit(raw)

	e.rows = rows
	e.features = features
	e.scaler = sc
	e.normalized = sc.transform(raw)
	e.matrix = nil
	e.matrixMetric = ""
	e.index = nil
	e.state = StatePrepared
	return nil
}

// finiteStat treats NaN and infinite values as missing.
func finiteStat(r player.Record, column string) (float64, bool) {
	v, ok := r.Stat(column)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ComputeSimilarityMatrix builds and caches the n x n similarity matrix
// and returns a copy of it. Time is O(n^2*d) and memory O(n^2).
func (e *Engine) ComputeSimilarityMatrix(metric Metric) (mat.Symmetric, error) {
	if err := e.ensureMatrix(metric); err != nil {
		return nil, err
	}
	n := e.matrix.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(e.matrix)
	return out, nil
}

func (e *Engine) ensureMatrix(metric Metric) error {
	if e.state == StateUnprepared {
		return ErrNotPrepared
	}
	metric, err := ParseMetric(string(metric))
	if err != nil {
		return err
	}
	if e.matrix != nil && e.matrixMetric == metric {
		return nil
	}

	n, _ := e.normalized.Dims()
	norms := rowNorms(n, e.normalized.RawRowView)
	sim := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a := e.normalized.RawRowView(i)
		for j := i; j < n; j++ {
			if i == j {
				sim.SetSym(i, i, 1)
				continue
			}
			b := e.normalized.RawRowView(j)
			var s float64
			if metric == MetricEuclidean {
				s = euclideanSimilarity(a, b)
			} else {
				s = cosine(a, b, norms[i], norms[j])
			}
			sim.SetSym(i, j, s)
		}
	}

	e.matrix = sim
	e.matrixMetric = metric
	e.state = StateMatrixReady
	return nil
}

// BuildNeighborIndex builds the exact k nearest neighbor index over the
// normalized matrix. k <= 0 uses DefaultNeighbors.
func (e *Engine) BuildNeighborIndex(k int, metric Metric) error {
	if e.state == StateUnprepared {
		return ErrNotPrepared
	}
	metric, err := ParseMetric(string(metric))
	if err != nil {
		return err
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	e.index = newNeighborIndex(e.normalized, k, metric)
	e.state = StateIndexReady
	return nil
}

// Ready reports whether queries in mode and metric can be answered
// without building anything.
func (e *Engine) Ready(mode Mode, metric Metric) bool {
	if e.state == StateUnprepared {
		return false
	}
	if mode == ModeIndex {
		return e.index != nil && e.index.metric == metric
	}
	return e.matrix != nil && e.matrixMetric == metric
}

// Warm builds the matrix or index that queries in mode and metric need.
// After Warm, concurrent GetSimilarPlayers calls with the same mode and
// metric only read engine state.
func (e *Engine) Warm(mode Mode, metric Metric) error {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	metric, err = ParseMetric(string(metric))
	if err != nil {
		return err
	}
	if e.Ready(mode, metric) {
		return nil
	}
	if mode == ModeIndex {
		return e.BuildNeighborIndex(e.neighbors, metric)
	}
	return e.ensureMatrix(metric)
}

// FindPlayerIndex returns the first retained row whose name contains name,
// case-insensitively.
func (e *Engine) FindPlayerIndex(name string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return 0, false
	}
	for i, r := range e.rows {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			return i, true
		}
	}
	return 0, false
}

// GetSimilarPlayers ranks the players most similar to the first match of
// name. An unknown name yields an empty result and no error.
func (e *Engine) GetSimilarPlayers(name string, topN int, mode Mode, metric Metric) ([]Result, error) {
	if e.state == StateUnprepared {
		return nil, ErrNotPrepared
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	metric, err = ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}

	target, ok := e.FindPlayerIndex(name)
	if !ok || topN <= 0 {
		return []Result{}, nil
	}

	if mode == ModeIndex {
		return e.similarFromIndex(target, topN, metric)
	}
	return e.similarFromMatrix(target, topN, metric)
}

func (e *Engine) similarFromMatrix(target, topN int, metric Metric) ([]Result, error) {
	if err := e.ensureMatrix(metric); err != nil {
		return nil, err
	}

	n := e.matrix.SymmetricDim()
	candidates := make([]int, 0, n-1)
	for j := 0; j < n; j++ {
		if j != target {
			candidates = append(candidates, j)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return e.matrix.At(target, candidates[a]) > e.matrix.At(target, candidates[b])
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	out := make([]Result, 0, len(candidates))
	for _, j := range candidates {
		out = append(out, e.result(len(out)+1, j, e.matrix.At(target, j)))
	}
	return out, nil
}

// similarFromIndex reports 1 - distance as the score, which matches the
// cosine similarity only for the cosine metric.
func (e *Engine) similarFromIndex(target, topN int, metric Metric) ([]Result, error) {
	if e.index == nil || e.index.metric != metric {
		if err := e.BuildNeighborIndex(topN+1, metric); err != nil {
			return nil, err
		}
	}

	out := make([]Result, 0, topN)
	for _, nb := range e.index.query(target, topN+1) {
		if nb.row == target {
			continue
		}
		if len(out) == topN {
			break
		}
		out = append(out, e.result(len(out)+1, nb.row, 1-nb.distance))
	}
	return out, nil
}

func (e *Engine) result(rank, row int, score float64) Result {
	r := e.rows[row]
	return Result{
		Rank:        rank,
		Player:      r.Name,
		Position:    r.Position,
		Club:        r.Club,
		Competition: r.Competition,
		Similarity:  score,
	}
}

// PlayerStats returns a copy of the first retained record matching name.
func (e *Engine) PlayerStats(name string) (player.Record, bool) {
	i, ok := e.FindPlayerIndex(name)
	if !ok {
		return player.Record{}, false
	}
	return e.rows[i].Clone(), true
}

// SearchPlayers returns every retained record whose name contains query,
// in table order.
func (e *Engine) SearchPlayers(query string) []player.Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]player.Record, 0)
	if needle == "" {
		return out
	}
	for _, r := range e.rows {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Names lists the retained player names in table order.
func (e *Engine) Names() []string {
	out := make([]string, len(e.rows))
	for i, r := range e.rows {
		out[i] = r.Name
	}
	return out
}

// Comparison lines up raw feature values of two players.
type Comparison struct {
	PlayerA player.Record
	PlayerB player.Record
	Rows    []ComparisonRow
}

type ComparisonRow struct {
	Stat string
	A    float64
	B    float64
}

// Compare reports both players' values over the resolved feature list.
// Missing values read as zero.
func (e *Engine) Compare(nameA, nameB string) (Comparison, error) {
	if e.state == StateUnprepared {
		return Comparison{}, ErrNotPrepared
	}
	a, ok := e.PlayerStats(nameA)
	if !ok {
		return Comparison{}, crerr.Wrapf(ErrPlayerNotFound, "%q", nameA)
	}
	b, ok := e.PlayerStats(nameB)
	if !ok {
		return Comparison{}, crerr.Wrapf(ErrPlayerNotFound, "%q", nameB)
	}

	rows := make([]ComparisonRow, 0, len(e.features))
	for _, f := range e.features {
		va, _ := a.Stat(f)
		vb, _ := b.Stat(f)
		rows = append(rows, ComparisonRow{Stat: f, A: va, B: vb})
	}
	return Comparison{PlayerA: a, PlayerB: b, Rows: rows}, nil
}
