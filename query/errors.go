package query

import (
	"net/http"

	"github.com/goliatone/go-bounty/core"
	goerrors "github.com/goliatone/go-errors"
)

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.BountyErrorInternal)
}
