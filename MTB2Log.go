package box2d

import (
	"os"

	"github.com/rs/zerolog"
)

// b2Log is the package's structured logger. It defaults to a plain,
// undecorated zerolog writer at info level: the engine has no business
// deciding how its host process formats logs, so SetLogger exists for a
// caller to redirect output (a console writer during development, a JSON
// sink in production) without the package caring which.
var b2Log zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// SetLogger replaces the package's logger. Call it before driving any
// B2World.Step if the BFS-cap and pool diagnostics below should go
// somewhere other than stderr.
func SetLogger(l zerolog.Logger) {
	b2Log = l
}
