package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// ErrNoCredentials is returned by a Mechanism when the request carries
// no credentials it understands. The resolver treats it as "abstain"
// and moves on to the next mechanism.
var ErrNoCredentials = errors.New("no credentials presented")

// Mechanism extracts and validates one kind of credential.
type Mechanism interface {
	// Resolve returns the identity for the request's credentials.
	// ErrNoCredentials means the mechanism found nothing to act on; any
	// other error means credentials were presented and rejected.
	Resolve(ctx context.Context, r *http.Request) (security.Identity, error)

	// Scheme is the WWW-Authenticate scheme advertised in challenges.
	Scheme() string
}

// Resolver walks mechanisms in order. It implements both
// security.IdentityResolver and security.ChallengeResponder.
type Resolver struct {
	mechanisms []Mechanism
	realm      string
}

// NewResolver creates a resolver over the given mechanisms. realm is
// included in challenges when non-empty.
func NewResolver(realm string, mechanisms ...Mechanism) *Resolver {
	return &Resolver{mechanisms: mechanisms, realm: realm}
}

// Resolve returns the first identity a mechanism produces. All-abstain
// yields the anonymous identity, not an error; rejected credentials
// yield an authentication failure.
func (rv *Resolver) Resolve(ctx context.Context, r *http.Request) (security.Identity, error) {
	for _, m := range rv.mechanisms {
		id, err := m.Resolve(ctx, r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if err != nil {
			return security.Anonymous(), fmt.Errorf("%w: %s", security.ErrAuthenticationFailed, err)
		}
		return id, nil
	}
	return security.Anonymous(), nil
}

// SendChallenge writes a WWW-Authenticate challenge for the first
// mechanism with a 401 status. Returns false without error when no
// mechanism is configured or the response already completed.
func (rv *Resolver) SendChallenge(_ context.Context, rc *security.RequestContext) (bool, error) {
	if len(rv.mechanisms) == 0 {
		return false, nil
	}
	challenge := rv.mechanisms[0].Scheme()
	if rv.realm != "" {
		challenge = fmt.Sprintf("%s realm=%q", challenge, rv.realm)
	}
	return rc.WriteChallenge(challenge), nil
}
