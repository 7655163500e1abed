package tokens

import (
	"context"
	"fmt"
	"log/slog"

	"idhub/internal/domain"
)

// Rewriter re-owns a pending request's confirmation tokens to the entity
// created from it.
type Rewriter struct {
	store Store
	log   *slog.Logger
}

type RewriterOption func(*Rewriter)

func WithLogger(log *slog.Logger) RewriterOption {
	return func(r *Rewriter) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRewriter(store Store, opts ...RewriterOption) *Rewriter {
	r := &Rewriter{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RewriteRequestTokens walks all confirmation tokens owned by the request.
// Tokens whose confirmed element survived translation and acceptance are
// re-owned to the entity with their original timestamps; tokens for elements
// that were filtered out are removed. Tokens with unreadable payloads are
// logged and removed rather than left orphaned.
func (r *Rewriter) RewriteRequestTokens(ctx context.Context, final *domain.RegistrationRequest, entity domain.EntityID) error {
	all, err := r.store.GetAllTokens(ctx, KindConfirmation)
	if err != nil {
		return fmt.Errorf("list confirmation tokens: %w", err)
	}

	requestID := final.ID.String()
	for _, token := range all {
		payload, err := token.ParsePayload()
		if err != nil {
			r.log.Warn("dropping confirmation token with unreadable payload",
				"key", token.Key, "error", err)
			if rmErr := r.store.RemoveToken(ctx, KindConfirmation, token.Key); rmErr != nil {
				return rmErr
			}
			continue
		}
		if !payload.requestScoped() || payload.Owner != requestID {
			continue
		}

		if !survives(final, payload) {
			if err := r.store.RemoveToken(ctx, KindConfirmation, token.Key); err != nil {
				return fmt.Errorf("remove stale token %s: %w", token.Key, err)
			}
			continue
		}

		reowned, err := reownedToken(token, payload, entity)
		if err != nil {
			return err
		}
		// One-shot overwrite: a failed write leaves the request-scoped
		// token in place so a retried acceptance can re-own it.
		if err := r.store.ReplaceToken(ctx, reowned); err != nil {
			return fmt.Errorf("reown token %s: %w", token.Key, err)
		}
	}
	return nil
}

// survives reports whether the element the token confirms is still present
// in the accepted request.
func survives(final *domain.RegistrationRequest, p Payload) bool {
	switch p.Facility {
	case FacilityRequestAttribute:
		for _, attr := range final.Attributes {
			if attr == nil || attr.Name != p.Type || attr.GroupPath != p.Group {
				continue
			}
			for _, v := range attr.Values {
				if v == p.Value {
					return true
				}
			}
		}
		return false
	case FacilityRequestIdentity:
		for _, id := range final.Identities {
			if id != nil && id.TypeID == p.Type && id.Value == p.Value {
				return true
			}
		}
		return false
	default:
		return false
	}
}
