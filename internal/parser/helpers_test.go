package parser

import (
	"errors"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

func asParseError(err error, target **core.ParseError) bool {
	return errors.As(err, target)
}
