package telemetry

import "github.com/fpsinspector/telemetry/internal/correlator"

// EventScores is the public per-frame score record, aliased from the
// correlator package that produces it so both packages share one
// type without an import cycle back into telemetry.
type EventScores = correlator.EventScores

// LSRScores is the public aggregate late-stage-reprojection score
// record, aliased the same way.
type LSRScores = correlator.LSRScores
