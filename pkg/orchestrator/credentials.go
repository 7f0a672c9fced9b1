package orchestrator

import (
	"context"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/domain"
	"github.com/inkwell-ai/chatcore/pkg/provider"
	"github.com/inkwell-ai/chatcore/pkg/repo"
	"github.com/inkwell-ai/chatcore/pkg/secrets"
)

// CredentialResolver decrypts a stored APICredential into the plaintext
// provider.Credential a Provider call needs, just-in-time (§5: "Credentials
// are decrypted just-in-time, held in memory only for the duration of a
// single provider call, and not logged").
type CredentialResolver interface {
	Resolve(ctx context.Context, userID, credentialID chatid.ID) (provider.Credential, error)
}

// KeyringCredentialResolver is the default CredentialResolver, backed by
// the API Credential repository and a secrets.Keyring.
type KeyringCredentialResolver struct {
	Credentials repo.Repository[domain.APICredential]
	Keyring     *secrets.Keyring
}

func (r *KeyringCredentialResolver) Resolve(ctx context.Context, userID, credentialID chatid.ID) (provider.Credential, error) {
	cred, err := r.Credentials.FindByID(ctx, credentialID)
	if err != nil {
		return provider.Credential{}, err
	}
	if cred.UserID != userID {
		return provider.Credential{}, &chaterrors.NotFound{Kind: "api_credential", ID: credentialID.String()}
	}
	plaintext, err := r.Keyring.Open(userID, cred.Ciphertext, cred.IV, cred.AuthTag)
	if err != nil {
		return provider.Credential{}, err
	}
	return provider.Credential{APIKey: plaintext}, nil
}
