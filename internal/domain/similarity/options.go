package similarity

import (
	"strings"

	crerr "github.com/cockroachdb/errors"
)

// Metric selects how two normalized rows are compared.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// Mode selects between the dense pairwise matrix and the neighbor index.
type Mode string

const (
	ModeMatrix Mode = "matrix"
	ModeIndex  Mode = "index"
)

// ScalerKind selects the per-column normalization fitted at Prepare.
type ScalerKind string

const (
	ScalerStandard ScalerKind = "standard"
	ScalerMinMax   ScalerKind = "minmax"
)

// State is the lifecycle stage of an Engine.
type State int

const (
	StateUnprepared State = iota
	StatePrepared
	StateMatrixReady
	StateIndexReady
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateMatrixReady:
		return "matrix_ready"
	case StateIndexReady:
		return "index_ready"
	default:
		return "unprepared"
	}
}

// DefaultNeighbors is the neighbor count used when an index is built
// without an explicit k.
const DefaultNeighbors = 11

func ParseMetric(v string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(MetricCosine):
		return MetricCosine, nil
	case string(MetricEuclidean):
		return MetricEuclidean, nil
	default:
		return "", crerr.Wrapf(ErrUnknownMetric, "%q", v)
	}
}

func ParseMode(v string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(ModeMatrix), "dense":
		return ModeMatrix, nil
	case string(ModeIndex), "knn":
		return ModeIndex, nil
	default:
		return "", crerr.Wrapf(ErrUnknownMode, "%q", v)
	}
}

func ParseScaler(v string) (ScalerKind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(ScalerStandard):
		return ScalerStandard, nil
	case string(ScalerMinMax), "min-max", "min_max":
		return ScalerMinMax, nil
	default:
		return "", crerr.Wrapf(ErrUnknownScaler, "%q", v)
	}
}
