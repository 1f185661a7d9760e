package providers

import (
	"context"
	"strings"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

// Account is a linked provider account as stored in configuration.
type Account struct {
	AccountID string `mapstructure:"account_id" yaml:"account_id"`
	Token     string `mapstructure:"token" yaml:"token"`
}

// ConfigAuthorizer serves authorizations from configuration:
// users.<user>.<source>.{account_id,token}.
type ConfigAuthorizer struct {
	Accounts map[string]map[string]Account
}

func (a ConfigAuthorizer) Authorize(_ context.Context, userID, source string) (Authorization, error) {
	acc, ok := a.Accounts[userID][source]
	if !ok || strings.TrimSpace(acc.AccountID) == "" {
		return Authorization{}, errs.Wrap(errs.ErrMissingCredential, source, "no linked account for "+userID, nil)
	}
	return Authorization{AccountID: acc.AccountID, Token: acc.Token}, nil
}

// Linked returns the sources a user has linked, in no particular order.
func (a ConfigAuthorizer) Linked(userID string) []string {
	var out []string
	for source := range a.Accounts[userID] {
		out = append(out, source)
	}
	return out
}
