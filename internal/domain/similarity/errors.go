package similarity

import crerr "github.com/cockroachdb/errors"

var (
	ErrNotPrepared     = crerr.New("similarity engine not prepared")
	ErrEmptyFeatureSet = crerr.New("no usable features in table")
	ErrNoRows          = crerr.New("no players left after filtering")
	ErrPlayerNotFound  = crerr.New("player not found")
	ErrUnknownMetric   = crerr.New("unknown similarity metric")
	ErrUnknownMode     = crerr.New("unknown similarity mode")
	ErrUnknownScaler   = crerr.New("unknown scaler")
)
